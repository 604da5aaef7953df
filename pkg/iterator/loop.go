package iterator

import (
	"context"
	"log/slog"
	"time"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// Start launches the background loop of a LOOP iterator.
//
// The loop calls Process, then sleeps until the earliest due entity, a Wakeup, a maintenance
// toggle or cancellation, whichever comes first. Sleeping never exceeds MaximumDelayForCheck.
func (it *Iterator[T]) Start(ctx context.Context) error {
	if it.cfg.ProcessMode != Loop {
		return ErrNotLoopMode
	}

	it.mu.Lock()
	defer it.mu.Unlock()
	if it.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	it.cancel = cancel
	it.done = make(chan struct{})
	// Read here so a resume racing the goroutine start still triggers recovery.
	go it.run(ctx, it.done, it.maintenance.Paused())

	it.logger.Info("iterator loop started",
		logger.Field(it.field),
		slog.Int("concurrency_limit", it.cfg.ConcurrencyLimit),
		slog.Duration("maximum_delay_for_check", it.cfg.MaximumDelayForCheck))
	return nil
}

// Stop cancels the loop and waits for it to exit. Handlers already submitted keep running.
func (it *Iterator[T]) Stop() error {
	it.mu.Lock()
	if it.cancel == nil {
		it.mu.Unlock()
		return ErrNotStarted
	}
	cancel, done := it.cancel, it.done
	it.cancel, it.done = nil, nil
	it.mu.Unlock()

	cancel()
	<-done

	it.logger.Info("iterator loop stopped")
	return nil
}

// Running reports whether the loop goroutine is active.
func (it *Iterator[T]) Running() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.cancel != nil
}

// Wakeup makes a sleeping loop run its next pass immediately. It never blocks and signals
// sent while a pass is running are coalesced into one.
func (it *Iterator[T]) Wakeup() {
	select {
	case it.wake <- struct{}{}:
	default:
	}
}

func (it *Iterator[T]) run(ctx context.Context, done chan struct{}, paused bool) {
	defer close(done)

	if paused {
		it.logger.Info("iterator paused for maintenance")
	}
	for {
		if ctx.Err() != nil {
			return
		}

		// Taken before reading the flag so a toggle between the two is not missed.
		toggled := it.maintenance.Changed()

		if it.maintenance.Paused() {
			if !paused {
				paused = true
				it.logger.Info("iterator paused for maintenance")
			}
			if !it.sleep(ctx, it.cfg.MaximumDelayForCheck, toggled) {
				return
			}
			continue
		}
		if paused {
			paused = false
			it.logger.Info("iterator resumed after maintenance")
			if _, err := it.RecoverAfterPause(ctx); err != nil {
				it.logger.Error("failed to recover after pause", logger.Error(err))
			}
		}

		if _, err := it.Process(ctx); err != nil && ctx.Err() == nil {
			it.logger.Error("iterator pass failed", logger.Error(err))
		}

		if !it.sleep(ctx, it.nextWait(ctx), toggled) {
			return
		}
	}
}

// sleep blocks for d or until woken; it returns false once ctx is cancelled.
func (it *Iterator[T]) sleep(ctx context.Context, d time.Duration, toggled <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-it.wake:
	case <-toggled:
	case <-timer.C:
	}
	return true
}

// nextWait is the time until the earliest due entity, kept within
// [minimumLoopDelay, MaximumDelayForCheck].
func (it *Iterator[T]) nextWait(ctx context.Context) time.Duration {
	limit := it.cfg.MaximumDelayForCheck
	now := it.clock()

	due, ok, err := it.store.EarliestDue(ctx, it.query(now))
	if err != nil {
		if ctx.Err() == nil {
			it.logger.Warn("failed to read earliest due time", logger.Error(err))
		}
		return limit
	}
	if !ok {
		return limit
	}

	wait := due.Sub(now)
	if wait < minimumLoopDelay {
		wait = minimumLoopDelay
	}
	if wait > limit {
		wait = limit
	}
	return wait
}
