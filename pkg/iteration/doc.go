// Package iteration implements the scheduling strategies an entity can use to describe when it
// should next be processed by an iterator.
//
// Every strategy is a pure function over an ordered list of timestamps. Given the list currently
// stored on the entity, a skip-missed flag and the current time, a strategy returns the list that
// should be stored next together with a flag telling whether anything changed. A false flag means
// "leave the stored value alone" and is distinct from a changed, empty list.
//
// # Strategies
//
//   - Regular:    not implemented here; the iterator writes now+interval itself
//   - Irregular:  drops missed entries and optionally pads from a Generator
//   - Cron:       Irregular padded from a cron expression, always LookaheadCount entries
//   - Fibonacci:  Irregular padded with Fibonacci back-off deltas between a floor and a ceiling
//
// Lists produced by this package are sorted ascending, free of duplicates and never longer than
// the configured lookahead count (LookaheadCount unless overridden).
//
// # Usage
//
//	c, err := iteration.ParseCron("0 */5 * * * *")
//	if err != nil {
//	    return err
//	}
//
//	next, changed := c.Recalculate(task.NextIterations, true, time.Now())
//	if changed {
//	    task.NextIterations = next
//	}
//
// Entities usually delegate their RecalculateNextIterations method to one of these strategies so
// the iterator engine can stay agnostic of how schedules are computed.
package iteration
