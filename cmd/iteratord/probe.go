package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/execution"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iteration"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// probeEntityType is the role gating every probe iterator.
const probeEntityType = "probe"

const (
	backoffFloor   = 30 * time.Second
	backoffCeiling = time.Hour
)

// Probe is an HTTP endpoint checked on three schedules: a fixed interval, a cron expression
// and a fibonacci backoff.
type Probe struct {
	ID              string      `bson:"_id" db:"id"`
	Target          string      `bson:"target" db:"target"`
	Schedule        string      `bson:"schedule" db:"schedule"`
	NextRun         *time.Time  `bson:"nextRun,omitempty" db:"next_run"`
	NextCronRuns    []time.Time `bson:"nextCronRuns,omitempty" db:"next_cron_runs"`
	NextBackoffRuns []time.Time `bson:"nextBackoffRuns,omitempty" db:"next_backoff_runs"`
	CreatedAt       time.Time   `bson:"createdAt" db:"created_at"`
}

// probeFields names the schedule fields in the selected backend.
type probeFields struct {
	Regular string
	Cron    string
	Backoff string
}

var (
	documentFields = probeFields{Regular: "nextRun", Cron: "nextCronRuns", Backoff: "nextBackoffRuns"}
	columnFields   = probeFields{Regular: "next_run", Cron: "next_cron_runs", Backoff: "next_backoff_runs"}
)

type slot int

const (
	slotRegular slot = iota
	slotCron
	slotBackoff
	slotUnknown
)

func slotOf(field string) slot {
	switch field {
	case documentFields.Regular, columnFields.Regular:
		return slotRegular
	case documentFields.Cron, columnFields.Cron:
		return slotCron
	case documentFields.Backoff, columnFields.Backoff:
		return slotBackoff
	}
	return slotUnknown
}

// NewProbe creates a probe with a stable id derived from its target, so seeding twice collides.
func NewProbe(target, schedule string) *Probe {
	return &Probe{
		ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(target)).String(),
		Target:    target,
		Schedule:  schedule,
		CreatedAt: time.Now().UTC(),
	}
}

func (p *Probe) EntityID() string { return p.ID }

func (p *Probe) NextIteration(field string) (time.Time, bool) {
	if slotOf(field) == slotRegular {
		if p.NextRun == nil {
			return time.Time{}, false
		}
		return *p.NextRun, true
	}
	return iteration.First(p.NextIterations(field))
}

func (p *Probe) NextIterations(field string) []time.Time {
	switch slotOf(field) {
	case slotCron:
		return p.NextCronRuns
	case slotBackoff:
		return p.NextBackoffRuns
	}
	return nil
}

func (p *Probe) RecalculateNextIterations(field string, skipMissed bool, now time.Time) ([]time.Time, bool) {
	var s iteration.Strategy
	switch slotOf(field) {
	case slotCron:
		cron, err := iteration.ParseCron(p.Schedule)
		if err != nil {
			return nil, false
		}
		s = cron
	case slotBackoff:
		fib, err := iteration.NewFibonacci(backoffFloor, backoffCeiling)
		if err != nil {
			return nil, false
		}
		s = fib
	default:
		return nil, false
	}
	return s.Recalculate(p.NextIterations(field), skipMissed, now)
}

// The remaining methods let MemoryStore hold probes.

func (p *Probe) SetNextIteration(_ string, at time.Time, scheduled bool) {
	if !scheduled {
		p.NextRun = nil
		return
	}
	p.NextRun = &at
}

func (p *Probe) SetNextIterations(field string, list []time.Time) {
	switch slotOf(field) {
	case slotCron:
		p.NextCronRuns = list
	case slotBackoff:
		p.NextBackoffRuns = list
	}
}

func (p *Probe) Clone() *Probe {
	c := *p
	if p.NextRun != nil {
		next := *p.NextRun
		c.NextRun = &next
	}
	c.NextCronRuns = slices.Clone(p.NextCronRuns)
	c.NextBackoffRuns = slices.Clone(p.NextBackoffRuns)
	return &c
}

// schedule fills the list fields so fresh probes are due without waiting for recovery.
func (p *Probe) schedule(fields probeFields, now time.Time) {
	if list, ok := p.RecalculateNextIterations(fields.Cron, true, now); ok {
		p.SetNextIterations(fields.Cron, list)
	}
	if list, ok := p.RecalculateNextIterations(fields.Backoff, false, now); ok {
		p.SetNextIterations(fields.Backoff, list)
	}
}

// prober checks a probe target with a HEAD request.
type prober struct {
	client *http.Client
	logger *slog.Logger
}

func newProber(log *slog.Logger) *prober {
	return &prober{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log.With(logger.Component("prober")),
	}
}

func (p *prober) Handle(ctx context.Context, probe *Probe) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probe.Target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", probe.Target, err)
	}
	_ = resp.Body.Close()

	p.logger.InfoContext(ctx, "probe checked",
		logger.EntityID(probe.ID),
		slog.String("target", probe.Target),
		slog.Int("status", resp.StatusCode),
		logger.Duration(time.Since(start)))
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s: status %d", probe.Target, resp.StatusCode)
	}
	return nil
}

// registerProbes registers the three probe iterators. Their pool, interval and mode come from
// the configuration file.
func registerProbes(reg *execution.Registry, f *iterator.Factory, hub *iterator.WakeupHub, store iterator.Store[*Probe], fields probeFields, h iterator.Handler[*Probe]) error {
	builders := []iterator.Builder[*Probe]{
		{
			Name:    "probe-regular",
			Field:   fields.Regular,
			Store:   store,
			Handler: h,
			Options: []iterator.Option{
				iterator.WithTargetInterval(time.Minute),
				iterator.WithRedistribute(true),
				iterator.WithAcceptableNoAlertDelay(30 * time.Second),
			},
		},
		{
			Name:    "probe-cron",
			Field:   fields.Cron,
			Store:   store,
			Handler: h,
			Options: []iterator.Option{
				iterator.WithSchedulingType(iterator.IrregularSkipMissed),
				iterator.WithMaximumDelayForCheck(5 * time.Minute),
			},
		},
		{
			Name:    "probe-backoff",
			Field:   fields.Backoff,
			Store:   store,
			Handler: h,
			Options: []iterator.Option{
				iterator.WithSchedulingType(iterator.Irregular),
			},
		},
	}
	for _, b := range builders {
		if err := reg.Register(b.Name, execution.IteratorLauncher(f, probeEntityType, b, hub)); err != nil {
			return err
		}
	}
	return nil
}
