package iterator

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring an iterator
type Option func(*options)

// WithConfig replaces every Config value at once; later options still apply on top.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithTargetInterval sets the interval regular entities are rescheduled with
func WithTargetInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.TargetInterval = d
		}
	}
}

// WithThrottleInterval sets the interval used in THROTTLE mode
func WithThrottleInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.ThrottleInterval = d
		}
	}
}

// WithNextIterationMode selects TARGET or THROTTLE rescheduling for regular entities
func WithNextIterationMode(m NextIterationMode) Option {
	return func(o *options) {
		if m == Target || m == Throttle {
			o.cfg.NextIterationMode = m
		}
	}
}

// WithAcceptableNoAlertDelay sets how late an entity may be picked up before it is reported
func WithAcceptableNoAlertDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.AcceptableNoAlertDelay = d
		}
	}
}

// WithAcceptableExecutionTime sets how long a handler may run before it is reported
func WithAcceptableExecutionTime(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.AcceptableExecutionTime = d
		}
	}
}

// WithMaximumDelayForCheck bounds the idle sleep of a LOOP iterator
func WithMaximumDelayForCheck(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.MaximumDelayForCheck = d
		}
	}
}

// WithSchedulingType selects regular or list-valued scheduling
func WithSchedulingType(t SchedulingType) Option {
	return func(o *options) {
		switch t {
		case Regular, Irregular, IrregularSkipMissed:
			o.cfg.SchedulingType = t
		}
	}
}

// WithProcessMode selects PUMP or LOOP
func WithProcessMode(m ProcessMode) Option {
	return func(o *options) {
		if m == Pump || m == Loop {
			o.cfg.ProcessMode = m
		}
	}
}

// WithConcurrencyLimit caps the number of entities of this iterator handled at once
func WithConcurrencyLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cfg.ConcurrencyLimit = n
		}
	}
}

// WithBatchSize caps the number of candidates read per scan
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cfg.BatchSize = n
		}
	}
}

// WithPumpInterval sets the fixed rate used when a PUMP iterator is driven by Run
func WithPumpInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.PumpInterval = d
		}
	}
}

// WithFilter narrows the candidate set
func WithFilter(f Filter) Option {
	return func(o *options) {
		o.cfg.Filter = f
	}
}

// WithRedistribute spreads never-scheduled regular entities over one interval
func WithRedistribute(enabled bool) Option {
	return func(o *options) {
		o.cfg.Redistribute = enabled
	}
}

// WithExecutor sets the pool handlers are submitted to
func WithExecutor(e Executor) Option {
	return func(o *options) {
		if e != nil {
			o.executor = e
		}
	}
}

// WithLogger sets the logger for the iterator
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics the iterator reports to
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithMaintenance sets the process-wide pause flag
func WithMaintenance(m *Maintenance) Option {
	return func(o *options) {
		if m != nil {
			o.maintenance = m
		}
	}
}

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}
