package iteration

import (
	"fmt"
	"time"
)

// Fibonacci pads a schedule with back-off deltas following the Fibonacci sequence scaled to
// Floor (1,1,2,3,5,8,... times Floor), each delta clamped at Ceiling.
//
// Continuation is derived from the stored list: the gap between the last two future entries
// selects the next delta. Once no future entry remains the sequence restarts at Floor from now.
type Fibonacci struct {
	Floor   time.Duration
	Ceiling time.Duration
	Count   int // zero means LookaheadCount
}

// NewFibonacci validates the bounds and returns the strategy.
func NewFibonacci(floor, ceiling time.Duration) (Fibonacci, error) {
	if floor <= 0 || ceiling <= 0 || floor > ceiling {
		return Fibonacci{}, fmt.Errorf("%w: floor=%s ceiling=%s", ErrInvalidBackoff, floor, ceiling)
	}
	return Fibonacci{Floor: floor, Ceiling: ceiling}, nil
}

func (f Fibonacci) Recalculate(current []time.Time, skipMissed bool, now time.Time) ([]time.Time, bool) {
	count := lookahead(f.Count)
	next := retained(current, skipMissed, now)
	if f.Floor <= 0 {
		return result(current, next, count)
	}

	// Only future entries carry the back-off state; anything older restarts the sequence.
	future := dropMissed(next, now)
	for len(next) < count {
		t := f.following(future, now)
		next = append(next, t)
		future = append(future, t)
	}
	return result(current, next, count)
}

func (f Fibonacci) following(future []time.Time, now time.Time) time.Time {
	switch n := len(future); n {
	case 0:
		return now.Add(f.clamp(f.Floor))
	case 1:
		return future[0].Add(f.clamp(f.Floor))
	default:
		return future[n-1].Add(f.step(future[n-1].Sub(future[n-2])))
	}
}

// step returns the smallest Fibonacci multiple of Floor larger than prev, clamped at Ceiling.
func (f Fibonacci) step(prev time.Duration) time.Duration {
	a, b := f.Floor, f.Floor
	for a <= prev {
		if f.Ceiling > 0 && a >= f.Ceiling {
			break
		}
		a, b = b, a+b
	}
	return f.clamp(a)
}

func (f Fibonacci) clamp(d time.Duration) time.Duration {
	if f.Ceiling > 0 && d > f.Ceiling {
		return f.Ceiling
	}
	return d
}
