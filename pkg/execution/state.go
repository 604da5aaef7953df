package execution

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a registered iterator.
type State string

const (
	// Init is the state of a registered iterator before any configuration was applied.
	Init State = "INIT"
	// Running iterators have a live executor.
	Running State = "RUNNING"
	// NotRunning iterators were disabled or never enabled.
	NotRunning State = "NOT_RUNNING"
)

// event triggers a lifecycle transition.
type event string

const (
	eventStart  event = "start"
	eventSkip   event = "skip"
	eventStop   event = "stop"
	eventResize event = "resize"
)

// transitions is the complete table; anything missing is rejected.
var transitions = map[State]map[event]State{
	Init: {
		eventStart: Running,
		eventSkip:  NotRunning,
	},
	Running: {
		eventStop:   NotRunning,
		eventResize: Running,
	},
	NotRunning: {
		eventStart: Running,
	},
}

// lifecycle is the state machine of one iterator. It is not safe for concurrent use;
// the owning entry serializes access.
type lifecycle struct {
	current State
	since   time.Time
}

func newLifecycle(now time.Time) lifecycle {
	return lifecycle{current: Init, since: now}
}

func (l *lifecycle) can(ev event) bool {
	_, ok := transitions[l.current][ev]
	return ok
}

// fire runs action and moves to the target state. A failing action aborts the transition.
func (l *lifecycle) fire(ev event, now time.Time, action func() error) error {
	to, ok := transitions[l.current][ev]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, l.current)
	}
	if action != nil {
		if err := action(); err != nil {
			return err
		}
	}
	if to != l.current {
		l.since = now
	}
	l.current = to
	return nil
}
