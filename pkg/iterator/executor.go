package iterator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// Executor runs submitted handler invocations. *ants.Pool and *Pool satisfy it.
type Executor interface {
	Submit(task func()) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func()) error

func (f ExecutorFunc) Submit(task func()) error {
	return f(task)
}

// sharedExecutor is used when no executor is configured; it is the ants default pool.
var sharedExecutor Executor = ExecutorFunc(ants.Submit)

// Pool is a named, fixed-size goroutine pool. Submit blocks while every worker is busy, so its
// Waiting count is the queue depth reported to metrics.
type Pool struct {
	name string
	pool *ants.Pool
}

// NewPool creates a pool of size workers. Panics escaping a task are logged, never propagated.
func NewPool(name string, size int, log *slog.Logger) (*Pool, error) {
	if name == "" || size <= 0 {
		return nil, fmt.Errorf("%w: name=%q size=%d", ErrInvalidPoolOptions, name, size)
	}
	if log == nil {
		log = slog.Default()
	}
	p, err := ants.NewPool(size,
		ants.WithPanicHandler(func(r any) {
			log.Error("pool task panicked", logger.Pool(name), slog.Any("panic", r))
		}),
		ants.WithExpiryDuration(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool %q: %w", name, err)
	}
	return &Pool{name: name, pool: p}, nil
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Submit(task func()) error { return p.pool.Submit(task) }

// Running returns the number of busy workers.
func (p *Pool) Running() int { return p.pool.Running() }

// Waiting returns the number of submissions blocked on a free worker.
func (p *Pool) Waiting() int { return p.pool.Waiting() }

// Cap returns the pool size.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Tune resizes the pool in place.
func (p *Pool) Tune(size int) {
	if size > 0 {
		p.pool.Tune(size)
	}
}

// IsClosed reports whether Release was called.
func (p *Pool) IsClosed() bool { return p.pool.IsClosed() }

// Release stops accepting work; in-flight tasks keep running.
func (p *Pool) Release() { p.pool.Release() }

// ReleaseTimeout stops accepting work and waits up to d for in-flight tasks.
func (p *Pool) ReleaseTimeout(d time.Duration) error { return p.pool.ReleaseTimeout(d) }
