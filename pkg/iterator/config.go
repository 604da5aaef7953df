package iterator

import (
	"log/slog"
	"time"
)

// SchedulingType selects how the schedule field is interpreted.
type SchedulingType string

const (
	// Regular schedules hold one timestamp advanced by the engine.
	Regular SchedulingType = "REGULAR"
	// Irregular schedules hold a list recomputed by the entity; missed entries are processed.
	Irregular SchedulingType = "IRREGULAR"
	// IrregularSkipMissed schedules hold a list recomputed by the entity; missed entries are dropped.
	IrregularSkipMissed SchedulingType = "IRREGULAR_SKIP_MISSED"
)

// List reports whether the schedule field is list-valued.
func (s SchedulingType) List() bool {
	return s == Irregular || s == IrregularSkipMissed
}

// ProcessMode selects what drives Process.
type ProcessMode string

const (
	// Pump iterators are driven by an external periodic trigger.
	Pump ProcessMode = "PUMP"
	// Loop iterators own a background goroutine sleeping until the next due time.
	Loop ProcessMode = "LOOP"
)

// NextIterationMode selects which interval a regular iterator adds on claim.
type NextIterationMode string

const (
	Target   NextIterationMode = "TARGET"
	Throttle NextIterationMode = "THROTTLE"
)

// Default values applied by New.
const (
	DefaultAcceptableNoAlertDelay  = time.Minute
	DefaultAcceptableExecutionTime = time.Minute
	DefaultMaximumDelayForCheck    = time.Minute
	DefaultConcurrencyLimit        = 10
	DefaultBatchSize               = 100
	DefaultPumpInterval            = 10 * time.Second

	// minimumLoopDelay keeps LOOP from spinning while due entities wait for permits.
	minimumLoopDelay = 100 * time.Millisecond
	// maxRescheduleAttempts bounds the optimistic read-recompute-write loop.
	maxRescheduleAttempts = 5
)

// Config holds the construction options of an iterator.
type Config struct {
	TargetInterval          time.Duration
	ThrottleInterval        time.Duration
	NextIterationMode       NextIterationMode
	AcceptableNoAlertDelay  time.Duration
	AcceptableExecutionTime time.Duration
	MaximumDelayForCheck    time.Duration
	SchedulingType          SchedulingType
	ProcessMode             ProcessMode
	ConcurrencyLimit        int
	BatchSize               int
	PumpInterval            time.Duration
	Filter                  Filter
	Redistribute            bool
}

// interval is what a regular claim adds to now.
func (c Config) interval() time.Duration {
	if c.NextIterationMode == Throttle && c.ThrottleInterval > 0 {
		return c.ThrottleInterval
	}
	if c.TargetInterval > 0 {
		return c.TargetInterval
	}
	return c.ThrottleInterval
}

type options struct {
	cfg         Config
	executor    Executor
	logger      *slog.Logger
	metrics     *Metrics
	maintenance *Maintenance
	clock       func() time.Time
}

func defaultOptions() *options {
	return &options{
		cfg: Config{
			NextIterationMode:       Target,
			AcceptableNoAlertDelay:  DefaultAcceptableNoAlertDelay,
			AcceptableExecutionTime: DefaultAcceptableExecutionTime,
			MaximumDelayForCheck:    DefaultMaximumDelayForCheck,
			SchedulingType:          Regular,
			ProcessMode:             Pump,
			ConcurrencyLimit:        DefaultConcurrencyLimit,
			BatchSize:               DefaultBatchSize,
			PumpInterval:            DefaultPumpInterval,
		},
		logger: slog.Default(),
		clock:  time.Now,
	}
}
