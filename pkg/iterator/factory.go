package iterator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// RoleGate decides whether this process runs iterators of an entity type.
// feature.Provider satisfies it.
type RoleGate interface {
	IsEnabled(ctx context.Context, role string) (bool, error)
}

// Builder carries everything needed to construct an iterator.
type Builder[T Entity] struct {
	Name    string
	Field   string
	Store   Store[T]
	Handler Handler[T]
	Options []Option
}

// Build constructs the iterator; extra options are applied after b.Options.
func (b Builder[T]) Build(extra ...Option) (*Iterator[T], error) {
	opts := make([]Option, 0, len(b.Options)+len(extra))
	opts = append(opts, b.Options...)
	opts = append(opts, extra...)
	return New(b.Name, b.Field, b.Store, b.Handler, opts...)
}

// PumpExecutorOptions describes a dedicated pool driving one PUMP iterator.
type PumpExecutorOptions struct {
	Name     string
	PoolSize int
	Interval time.Duration
}

func (o PumpExecutorOptions) validate() error {
	if o.Name == "" || o.PoolSize <= 0 || o.Interval <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidPoolOptions, o)
	}
	return nil
}

// Factory creates and starts iterators for the entity types this process is responsible for.
type Factory struct {
	gate        RoleGate
	executor    Executor
	logger      *slog.Logger
	metrics     *Metrics
	maintenance *Maintenance

	mu      sync.Mutex
	runners []*Runner
}

// FactoryOption is a functional option for configuring a factory
type FactoryOption func(*Factory)

// WithSharedExecutor sets the pool shared by iterators created without a dedicated pool
func WithSharedExecutor(e Executor) FactoryOption {
	return func(f *Factory) {
		if e != nil {
			f.executor = e
		}
	}
}

// WithFactoryLogger sets the logger handed to created iterators
func WithFactoryLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithFactoryMetrics sets the metrics handed to created iterators
func WithFactoryMetrics(m *Metrics) FactoryOption {
	return func(f *Factory) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithFactoryMaintenance sets the pause switch handed to created iterators
func WithFactoryMaintenance(m *Maintenance) FactoryOption {
	return func(f *Factory) {
		if m != nil {
			f.maintenance = m
		}
	}
}

// NewFactory creates a factory gated by gate.
func NewFactory(gate RoleGate, opts ...FactoryOption) (*Factory, error) {
	if gate == nil {
		return nil, ErrRoleGateNil
	}
	f := &Factory{
		gate:     gate,
		executor: sharedExecutor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = GetMetrics()
	}
	return f, nil
}

// baseOptions come first so builder options can override them.
func (f *Factory) baseOptions() []Option {
	return []Option{
		WithExecutor(f.executor),
		WithLogger(f.logger),
		WithMetrics(f.metrics),
		WithMaintenance(f.maintenance),
	}
}

func (f *Factory) active(ctx context.Context, entityType, name string) (bool, error) {
	ok, err := f.gate.IsEnabled(ctx, entityType)
	if err != nil {
		return false, fmt.Errorf("check role for %q: %w", entityType, err)
	}
	if !ok {
		f.logger.Info("iterator not created, role inactive",
			logger.Iterator(name),
			slog.String("entity_type", entityType))
	}
	return ok, nil
}

func (f *Factory) track(r *Runner) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runners = append(f.runners, r)
}

// CreateIterator builds and starts an iterator on the factory's shared executor.
// When the role gate is inactive for entityType nothing is created and the bool is false.
func CreateIterator[T Entity](ctx context.Context, f *Factory, entityType string, b Builder[T]) (*Iterator[T], bool, error) {
	it, _, ok, err := Launch(ctx, f, entityType, b, nil)
	return it, ok, err
}

// CreatePumpIteratorWithDedicatedPool builds a PUMP iterator with its own fixed-size pool
// triggered at po.Interval. The pool is exported to metrics while the iterator runs.
func CreatePumpIteratorWithDedicatedPool[T Entity](ctx context.Context, f *Factory, po PumpExecutorOptions, entityType string, b Builder[T]) (*Iterator[T], bool, error) {
	it, _, ok, err := Launch(ctx, f, entityType, b, &po)
	return it, ok, err
}

// Launch is CreateIterator when po is nil and CreatePumpIteratorWithDedicatedPool otherwise.
// It also returns the runner so a single iterator can later be stopped with Release.
func Launch[T Entity](ctx context.Context, f *Factory, entityType string, b Builder[T], po *PumpExecutorOptions) (*Iterator[T], *Runner, bool, error) {
	if po != nil {
		if err := po.validate(); err != nil {
			return nil, nil, false, err
		}
	}
	ok, err := f.active(ctx, entityType, b.Name)
	if err != nil || !ok {
		return nil, nil, false, err
	}

	opts := append(f.baseOptions(), b.Options...)
	var pool *Pool
	if po != nil {
		pool, err = NewPool(po.Name, po.PoolSize, f.logger)
		if err != nil {
			return nil, nil, false, err
		}
		opts = append(opts,
			WithExecutor(pool),
			WithProcessMode(Pump),
			WithPumpInterval(po.Interval),
		)
	}

	it, err := New(b.Name, b.Field, b.Store, b.Handler, opts...)
	if err == nil {
		var r *Runner
		if r, err = Run(ctx, it, pool); err == nil {
			f.track(r)
			f.logger.Info("iterator started",
				logger.Iterator(b.Name),
				slog.String("entity_type", entityType),
				logger.Mode(string(it.cfg.ProcessMode)))
			return it, r, true, nil
		}
	}
	if pool != nil {
		pool.Release()
	}
	return nil, nil, false, err
}

// Release shuts down one runner started by the factory and forgets it.
func (f *Factory) Release(r *Runner) error {
	if r == nil {
		return nil
	}
	f.mu.Lock()
	for i, tracked := range f.runners {
		if tracked == r {
			f.runners = append(f.runners[:i], f.runners[i+1:]...)
			break
		}
	}
	f.mu.Unlock()
	return r.Shutdown()
}

// Runners returns the runners started by the factory.
func (f *Factory) Runners() []*Runner {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Runner, len(f.runners))
	copy(out, f.runners)
	return out
}

// Shutdown stops every iterator the factory started.
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	runners := f.runners
	f.runners = nil
	f.mu.Unlock()

	var errs []error
	for _, r := range runners {
		if err := r.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}
