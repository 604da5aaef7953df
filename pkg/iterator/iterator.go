package iterator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// Iterator claims due entities of one schedule field, runs the handler on them and writes
// their next schedule.
type Iterator[T Entity] struct {
	id      uuid.UUID
	name    string
	field   string
	store   Store[T]
	handler Handler[T]
	cfg     Config

	permits     *semaphore.Weighted
	executor    Executor
	logger      *slog.Logger
	metrics     *Metrics
	maintenance *Maintenance
	clock       func() time.Time

	wake chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an iterator over field of the entities held by store.
func New[T Entity](name, field string, store Store[T], handler Handler[T], opts ...Option) (*Iterator[T], error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	if field == "" {
		return nil, ErrFieldRequired
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.ConcurrencyLimit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidConcurrency, o.cfg.ConcurrencyLimit)
	}
	cfg := withDefaults(o.cfg)

	if cfg.SchedulingType.List() {
		var zero T
		if _, ok := any(zero).(IrregularEntity); !ok {
			return nil, fmt.Errorf("%w: %T", ErrNotIrregular, zero)
		}
	} else if cfg.interval() <= 0 {
		return nil, ErrInvalidInterval
	}

	executor := o.executor
	if executor == nil {
		executor = sharedExecutor
	}
	metrics := o.metrics
	if metrics == nil {
		metrics = GetMetrics()
	}

	id := uuid.New()
	return &Iterator[T]{
		id:          id,
		name:        name,
		field:       field,
		store:       store,
		handler:     handler,
		cfg:         cfg,
		permits:     semaphore.NewWeighted(int64(cfg.ConcurrencyLimit)),
		executor:    executor,
		metrics:     metrics,
		maintenance: o.maintenance,
		clock:       o.clock,
		logger: o.logger.With(
			logger.Component("iterator"),
			logger.Iterator(name),
			slog.String("instance_id", id.String()),
		),
		wake: make(chan struct{}, 1),
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.SchedulingType == "" {
		cfg.SchedulingType = Regular
	}
	if cfg.ProcessMode == "" {
		cfg.ProcessMode = Pump
	}
	if cfg.NextIterationMode == "" {
		cfg.NextIterationMode = Target
	}
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaximumDelayForCheck <= 0 {
		cfg.MaximumDelayForCheck = DefaultMaximumDelayForCheck
	}
	if cfg.PumpInterval <= 0 {
		cfg.PumpInterval = DefaultPumpInterval
	}
	return cfg
}

// Name returns the iterator name.
func (it *Iterator[T]) Name() string { return it.name }

// Field returns the schedule field the iterator works on.
func (it *Iterator[T]) Field() string { return it.field }

// Config returns the effective configuration.
func (it *Iterator[T]) Config() Config { return it.cfg }

// Process runs one bounded scan: it claims due entities and submits them to the executor.
//
// A permit is taken before each claim so that a candidate is only claimed when it can also be
// dispatched; once permits run out the remaining candidates are left for a later pass. It returns
// the number of entities dispatched.
func (it *Iterator[T]) Process(ctx context.Context) (int, error) {
	if it.maintenance.Paused() {
		return 0, nil
	}

	now := it.clock()
	candidates, err := it.store.FindDue(ctx, it.query(now))
	if err != nil {
		return 0, fmt.Errorf("find due entities: %w", err)
	}

	dispatched := 0
	for i, entity := range candidates {
		if ctx.Err() != nil {
			break
		}
		if !it.permits.TryAcquire(1) {
			deferred := len(candidates) - i
			it.metrics.Claims.WithLabelValues(it.name, claimResultDeferred).Add(float64(deferred))
			it.logger.Debug("concurrency limit reached, deferring candidates", slog.Int("deferred", deferred))
			break
		}

		if err := it.claim(ctx, entity, now); err != nil {
			it.permits.Release(1)
			if errors.Is(err, ErrClaimConflict) {
				it.metrics.claim(it.name, claimResultConflict)
				continue
			}
			it.logger.Error("failed to claim entity",
				logger.EntityID(entity.EntityID()),
				logger.Error(err))
			continue
		}
		it.metrics.claim(it.name, claimResultClaimed)

		// Handlers outlive the pass that dispatched them; cancellation only stops new claims.
		taskCtx := context.WithoutCancel(ctx)
		if err := it.executor.Submit(func() {
			defer it.permits.Release(1)
			_ = it.ProcessEntity(taskCtx, entity)
		}); err != nil {
			it.permits.Release(1)
			it.metrics.claim(it.name, claimResultRejected)
			it.logger.Error("failed to submit entity",
				logger.EntityID(entity.EntityID()),
				logger.Error(err))
			continue
		}
		dispatched++
	}

	return dispatched, nil
}

func (it *Iterator[T]) query(now time.Time) Query {
	return Query{
		Field:  it.field,
		List:   it.cfg.SchedulingType.List(),
		Now:    now,
		Limit:  it.cfg.BatchSize,
		Filter: it.cfg.Filter,
	}
}

func (it *Iterator[T]) claim(ctx context.Context, entity T, now time.Time) error {
	observed, scheduled := entity.NextIteration(it.field)
	c := Claim{
		ID:        entity.EntityID(),
		Field:     it.field,
		List:      it.cfg.SchedulingType.List(),
		Observed:  observed,
		Scheduled: scheduled,
	}
	if c.List {
		if !scheduled {
			return ErrClaimConflict
		}
	} else {
		c.Next = it.nextRegular(now, scheduled)
	}
	return it.store.Claim(ctx, c)
}

// nextRegular spreads entities that were never scheduled over one interval when redistribution
// is enabled, so records created together do not fire together forever.
func (it *Iterator[T]) nextRegular(now time.Time, scheduled bool) time.Time {
	interval := it.cfg.interval()
	if it.cfg.Redistribute && !scheduled {
		return now.Add(time.Duration(rand.Int64N(int64(interval))))
	}
	return now.Add(interval)
}

// ProcessEntity runs the handler on a claimed entity and, for list schedules, writes the
// entity's recomputed schedule. Failures are logged and returned; they never affect other entities.
func (it *Iterator[T]) ProcessEntity(ctx context.Context, entity T) error {
	id := entity.EntityID()
	ctx = logger.WithEntityID(logger.WithIterator(ctx, it.name), id)

	start := it.clock()
	due, hasDue := entity.NextIteration(it.field)
	if hasDue {
		delay := start.Sub(due)
		if it.metrics.observeDelay(it.name, delay, it.cfg.AcceptableNoAlertDelay) {
			it.logger.WarnContext(ctx, "entity picked up later than acceptable",
				logger.EntityID(id),
				logger.DueAt(due),
				logger.Delay(delay))
		}
	}

	err := it.invoke(ctx, entity)
	elapsed := it.clock().Sub(start)
	if it.metrics.observeExecution(it.name, elapsed, it.cfg.AcceptableExecutionTime) {
		it.logger.WarnContext(ctx, "execution exceeded acceptable time",
			logger.EntityID(id),
			logger.Duration(elapsed))
	}
	if err != nil {
		it.metrics.HandlerErrors.WithLabelValues(it.name).Inc()
		it.logger.ErrorContext(ctx, "handler failed",
			logger.EntityID(id),
			logger.Duration(elapsed),
			logger.Error(err))
		if it.cfg.SchedulingType.List() && hasDue {
			it.restoreClaimed(ctx, id, due)
		}
		return err
	}

	if !it.cfg.SchedulingType.List() {
		return nil
	}
	if err := it.reschedule(ctx, id); err != nil {
		it.logger.ErrorContext(ctx, "failed to reschedule entity",
			logger.EntityID(id),
			logger.Error(err))
		if hasDue {
			it.restoreClaimed(ctx, id, due)
		}
		return err
	}
	return nil
}

// restoreClaimed puts the entry removed by the claim back at the head of the list, so a failed
// pass leaves the schedule as it was and the entity is picked up again on the next pass.
func (it *Iterator[T]) restoreClaimed(ctx context.Context, id string, at time.Time) {
	if err := it.store.PushIteration(ctx, id, it.field, at); err != nil && !errors.Is(err, ErrEntityNotFound) {
		it.logger.ErrorContext(ctx, "failed to restore claimed schedule entry",
			logger.EntityID(id),
			logger.DueAt(at),
			logger.Error(err))
	}
}

func (it *Iterator[T]) invoke(ctx context.Context, entity T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return it.handler.Handle(ctx, entity)
}

// reschedule re-reads the entity before recomputing so entries appended by other actors since
// the claim are part of the input, and retries when the conditional write loses a race.
func (it *Iterator[T]) reschedule(ctx context.Context, id string) error {
	skipMissed := it.cfg.SchedulingType == IrregularSkipMissed
	for range maxRescheduleAttempts {
		fresh, err := it.store.Load(ctx, id)
		if errors.Is(err, ErrEntityNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load entity: %w", err)
		}

		_, err = it.recalculate(ctx, fresh, skipMissed)
		if errors.Is(err, ErrConcurrentModification) {
			it.metrics.reschedule(it.name, "conflict")
			continue
		}
		return err
	}
	return ErrConcurrentModification
}

// recalculate asks the entity for its next list and writes it conditionally.
// It reports whether anything was written.
func (it *Iterator[T]) recalculate(ctx context.Context, entity T, skipMissed bool) (bool, error) {
	ie, ok := any(entity).(IrregularEntity)
	if !ok {
		return false, ErrNotIrregular
	}

	current := ie.NextIterations(it.field)
	next, changed, err := recalculateSafely(ie, it.field, skipMissed, it.clock())
	if err != nil {
		it.metrics.reschedule(it.name, "failed")
		return false, err
	}
	if !changed {
		it.metrics.reschedule(it.name, "unchanged")
		return false, nil
	}

	if err := it.store.ReplaceIterations(ctx, entity.EntityID(), it.field, current, next); err != nil {
		return false, err
	}
	it.metrics.reschedule(it.name, "written")
	return true, nil
}

func recalculateSafely(ie IrregularEntity, field string, skipMissed bool, now time.Time) (next []time.Time, changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRecalculation, r)
		}
	}()

	next, changed = ie.RecalculateNextIterations(field, skipMissed, now)
	if !changed {
		return nil, false, nil
	}
	if !slices.IsSortedFunc(next, func(a, b time.Time) int { return a.Compare(b) }) {
		return nil, false, fmt.Errorf("%w: list is not ascending", ErrRecalculation)
	}
	for i := 1; i < len(next); i++ {
		if next[i].Equal(next[i-1]) {
			return nil, false, fmt.Errorf("%w: duplicate entry %s", ErrRecalculation, next[i])
		}
	}
	return next, true, nil
}

// RecoverAfterPause regenerates list schedules that became empty or unset while the engine was
// not running. Regular iterators need no recovery because unscheduled entities are due.
func (it *Iterator[T]) RecoverAfterPause(ctx context.Context) (int, error) {
	if !it.cfg.SchedulingType.List() {
		return 0, nil
	}

	entities, err := it.store.FindUnscheduled(ctx, it.query(it.clock()))
	if err != nil {
		return 0, fmt.Errorf("find unscheduled entities: %w", err)
	}

	recovered := 0
	for _, entity := range entities {
		written, err := it.recalculate(ctx, entity, true)
		switch {
		case errors.Is(err, ErrConcurrentModification):
			// someone else scheduled it meanwhile
		case err != nil:
			it.logger.Error("failed to recover entity schedule",
				logger.EntityID(entity.EntityID()),
				logger.Error(err))
		case written:
			recovered++
		}
	}

	if recovered > 0 {
		it.logger.Info("recovered schedules after pause", slog.Int("count", recovered))
	}
	return recovered, nil
}
