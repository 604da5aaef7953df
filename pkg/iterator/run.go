package iterator

import (
	"context"
	"errors"
	"sync"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// Runner is a started iterator together with whatever drives it: the loop goroutine for LOOP
// iterators, a PumpTrigger for PUMP iterators, and optionally a dedicated pool.
type Runner struct {
	name      string
	mode      ProcessMode
	stop      func() error
	pool      *Pool
	collector *PoolCollector

	mu       sync.Mutex
	shutdown bool
}

// Run starts it in its configured mode. When pool is not nil it must be the iterator's executor;
// it is reported to metrics while running and released on Shutdown.
func Run[T Entity](ctx context.Context, it *Iterator[T], pool *Pool) (*Runner, error) {
	r := &Runner{name: it.name, mode: it.cfg.ProcessMode, pool: pool}

	// Lists emptied while no process ran this iterator would otherwise never come due.
	if _, err := it.RecoverAfterPause(ctx); err != nil {
		it.logger.Warn("failed to recover schedules at start", logger.Error(err))
	}

	switch it.cfg.ProcessMode {
	case Loop:
		if err := it.Start(ctx); err != nil {
			return nil, err
		}
		r.stop = it.Stop
	default:
		pump, err := NewPump(it.name, it.cfg.PumpInterval, it.Process, it.logger)
		if err != nil {
			return nil, err
		}
		pump.Start()
		r.stop = pump.Stop
	}

	if pool != nil {
		r.collector = it.metrics.Pools
		r.collector.Add(pool)
	}
	return r, nil
}

// Name returns the iterator name.
func (r *Runner) Name() string { return r.name }

// Mode returns the process mode the iterator runs in.
func (r *Runner) Mode() ProcessMode { return r.mode }

// Pool returns the dedicated pool, if any.
func (r *Runner) Pool() *Pool { return r.pool }

// Shutdown stops triggering passes and releases the dedicated pool. Submitted handlers keep
// running to completion. Calling it more than once is a no-op.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return nil
	}
	r.shutdown = true

	err := r.stop()
	if errors.Is(err, ErrNotStarted) {
		err = nil
	}
	if r.pool != nil {
		r.collector.Remove(r.pool)
		r.pool.Release()
	}
	return err
}

// IsShutdown reports whether Shutdown was called.
func (r *Runner) IsShutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}
