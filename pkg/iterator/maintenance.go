package iterator

import (
	"sync"
	"sync/atomic"
)

// Maintenance is the process-wide pause switch observed by every LOOP iterator.
//
// The flag is a single atomic value, so no iterator can see a half-applied toggle. Changed
// returns a channel closed on the next toggle, letting sleeping loops react immediately.
type Maintenance struct {
	paused atomic.Bool

	mu      sync.Mutex
	changed chan struct{}
}

// NewMaintenance returns a switch in the running (not paused) position.
func NewMaintenance() *Maintenance {
	return &Maintenance{changed: make(chan struct{})}
}

// Paused reports whether maintenance is active.
func (m *Maintenance) Paused() bool {
	return m != nil && m.paused.Load()
}

// Pause activates maintenance.
func (m *Maintenance) Pause() bool { return m.Set(true) }

// Resume deactivates maintenance.
func (m *Maintenance) Resume() bool { return m.Set(false) }

// Set moves the switch and reports whether its position changed.
func (m *Maintenance) Set(paused bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused.Load() == paused {
		return false
	}
	m.paused.Store(paused)
	close(m.changed)
	m.changed = make(chan struct{})
	return true
}

// Changed returns a channel closed at the next toggle. A nil Maintenance never toggles.
func (m *Maintenance) Changed() <-chan struct{} {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}
