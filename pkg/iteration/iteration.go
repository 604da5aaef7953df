package iteration

import (
	"slices"
	"time"
)

// LookaheadCount is the number of future fire times kept on list-valued schedules.
const LookaheadCount = 10

// Strategy recomputes a list-valued schedule.
//
// The returned bool reports whether the result differs from current. When it is false the
// returned slice must be ignored and nothing should be written.
type Strategy interface {
	Recalculate(current []time.Time, skipMissed bool, now time.Time) ([]time.Time, bool)
}

// Generator yields the first fire time strictly after from.
// The bool is false once the generator is exhausted.
type Generator interface {
	Next(from time.Time) (time.Time, bool)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(from time.Time) (time.Time, bool)

func (f GeneratorFunc) Next(from time.Time) (time.Time, bool) {
	return f(from)
}

// Normalize returns a sorted copy of list without duplicate instants.
func Normalize(list []time.Time) []time.Time {
	out := slices.Clone(list)
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}

// Equal reports whether two schedules hold the same instants in the same order.
func Equal(a, b []time.Time) bool {
	return slices.EqualFunc(a, b, func(x, y time.Time) bool { return x.Equal(y) })
}

// First returns the head of a list-valued schedule.
func First(list []time.Time) (time.Time, bool) {
	if len(list) == 0 {
		return time.Time{}, false
	}
	return list[0], true
}

// dropMissed removes every entry before now from a sorted list.
func dropMissed(list []time.Time, now time.Time) []time.Time {
	idx, _ := slices.BinarySearchFunc(list, now, func(e, t time.Time) int { return e.Compare(t) })
	return list[idx:]
}

// retained is the shared first half of every list strategy: normalize and optionally skip.
func retained(current []time.Time, skipMissed bool, now time.Time) []time.Time {
	list := Normalize(current)
	if skipMissed {
		list = dropMissed(list, now)
	}
	return list
}

// result compares the computed list with the stored one and trims it to count.
func result(current, next []time.Time, count int) ([]time.Time, bool) {
	if len(next) > count {
		next = next[:count]
	}
	if Equal(current, next) {
		return nil, false
	}
	if next == nil {
		next = []time.Time{}
	}
	return next, true
}

func lookahead(count int) int {
	if count <= 0 {
		return LookaheadCount
	}
	return count
}
