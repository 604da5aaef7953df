package iteration

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both five-field and six-field (leading seconds) expressions, plus descriptors
// such as @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Cron pads an irregular schedule from a cron expression and always keeps Count entries.
type Cron struct {
	expr     string
	schedule cron.Schedule
	count    int
}

// ParseCron builds a Cron strategy keeping LookaheadCount entries.
func ParseCron(expr string) (Cron, error) {
	return ParseCronWithCount(expr, LookaheadCount)
}

// ParseCronWithCount builds a Cron strategy keeping count entries.
func ParseCronWithCount(expr string, count int) (Cron, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return Cron{}, errors.Join(ErrInvalidCronExpression, fmt.Errorf("parse %q: %w", expr, err))
	}
	return Cron{expr: expr, schedule: schedule, count: lookahead(count)}, nil
}

// ValidateCron reports whether expr is accepted by ParseCron.
func ValidateCron(expr string) error {
	_, err := ParseCron(expr)
	return err
}

// Expression returns the source expression.
func (c Cron) Expression() string {
	return c.expr
}

// Next implements Generator.
func (c Cron) Next(from time.Time) (time.Time, bool) {
	if c.schedule == nil {
		return time.Time{}, false
	}
	t := c.schedule.Next(from)
	return t, !t.IsZero()
}

// Recalculate drops missed entries (when asked) and pads from max(last retained, now).
// If every stored entry was missed the full window is regenerated from now.
func (c Cron) Recalculate(current []time.Time, skipMissed bool, now time.Time) ([]time.Time, bool) {
	return Irregular{Generator: c, Count: c.count}.Recalculate(current, skipMissed, now)
}
