package iteration

import "time"

// Irregular keeps an explicit list of fire times.
//
// Missed entries are discarded when skipMissed is set. If a Generator is present the list is
// padded up to Count entries, starting after max(last retained entry, now). Without a Generator
// the list only ever shrinks, which suits schedules fully owned by the entity.
type Irregular struct {
	Generator Generator
	Count     int // zero means LookaheadCount
}

func (s Irregular) Recalculate(current []time.Time, skipMissed bool, now time.Time) ([]time.Time, bool) {
	count := lookahead(s.Count)
	next := retained(current, skipMissed, now)
	if s.Generator != nil {
		next = pad(next, now, count, s.Generator)
	}
	return result(current, next, count)
}

// pad appends generated fire times until the list holds count entries or the generator runs dry.
func pad(list []time.Time, now time.Time, count int, gen Generator) []time.Time {
	from := now
	if n := len(list); n > 0 && list[n-1].After(from) {
		from = list[n-1]
	}
	for len(list) < count {
		t, ok := gen.Next(from)
		if !ok || !t.After(from) {
			break
		}
		list = append(list, t)
		from = t
	}
	return list
}
