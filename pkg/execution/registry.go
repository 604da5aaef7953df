package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// Status is a point-in-time view of one registered iterator.
type Status struct {
	Name       string          `json:"name"`
	State      State           `json:"state"`
	Config     *IteratorConfig `json:"config,omitempty"`
	Generation uint64          `json:"generation"`
	Since      time.Time       `json:"since"`
	Error      string          `json:"error,omitempty"`
}

// Registry owns the lifecycle of every iterator of the process. All state changes go through
// StartIterators and ApplyConfiguration.
type Registry struct {
	logger *slog.Logger
	clock  func() time.Time
	base   context.Context

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	closed  bool
}

type entry struct {
	name     string
	launcher Launcher

	mu         sync.Mutex
	lc         lifecycle
	cfg        *IteratorConfig
	handle     Handle
	stop       context.CancelFunc
	generation uint64
	lastErr    error
}

// RegistryOption is a functional option for configuring a registry
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger for the registry
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRegistryClock overrides time.Now for state timestamps
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.clock = now
		}
	}
}

// WithRegistryContext sets the context every launch derives from. Its values reach the
// launchers, its cancellation stops every iterator.
func WithRegistryContext(ctx context.Context) RegistryOption {
	return func(r *Registry) {
		if ctx != nil {
			r.base = ctx
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:  slog.Default(),
		clock:   time.Now,
		base:    context.Background(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.cancel = context.WithCancel(r.base)
	r.logger = r.logger.With(logger.Component("execution"))
	return r
}

// Register adds an iterator in state INIT. Nothing is started until a record enables it.
func (r *Registry) Register(name string, l Launcher) error {
	if name == "" {
		return ErrNameRequired
	}
	if l == nil {
		return ErrLauncherNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.entries[name] = &entry{name: name, launcher: l, lc: newLifecycle(r.clock())}
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) lookup(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIteratorNotRegistered, name)
	}
	return e, nil
}

func (r *Registry) registered() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// StartIterators applies the initial snapshot. Every iterator still in INIT whose record is
// enabled is started; the rest move to NOT_RUNNING. Iterators that fail to start are reported
// and left NOT_RUNNING.
func (r *Registry) StartIterators(ctx context.Context, records []IteratorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	byName := make(map[string]IteratorConfig, len(records))
	for _, rec := range records {
		byName[rec.Name] = rec
	}
	for name := range byName {
		if _, err := r.lookup(name); errors.Is(err, ErrIteratorNotRegistered) {
			r.logger.Warn("configuration for unknown iterator ignored", logger.Iterator(name))
		}
	}

	var errs []error
	for _, e := range r.registered() {
		rec, found := byName[e.name]
		if !found {
			rec = IteratorConfig{Name: e.name}
		}
		if err := r.startEntry(e, rec, found); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) startEntry(e *entry, rec IteratorConfig, found bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.isClosed() {
		return ErrRegistryClosed
	}
	if e.lc.current != Init {
		return nil
	}
	if found {
		if err := rec.Validate(); err != nil {
			return r.skip(e, nil, err)
		}
	}
	if !rec.Enabled {
		var cfg *IteratorConfig
		if found {
			cfg = &rec
		}
		return r.skip(e, cfg, nil)
	}
	if err := r.start(e, rec); err != nil {
		return r.skip(e, &rec, err)
	}
	return nil
}

// skip moves an INIT entry to NOT_RUNNING and reports cause, if any.
func (r *Registry) skip(e *entry, cfg *IteratorConfig, cause error) error {
	if err := e.lc.fire(eventSkip, r.clock(), nil); err != nil {
		return err
	}
	e.cfg = cfg
	e.lastErr = cause
	if cause == nil {
		r.logger.Info("iterator not running", logger.Iterator(e.name))
		return nil
	}
	if errors.Is(cause, ErrRoleInactive) {
		r.logger.Info("iterator not running, role inactive", logger.Iterator(e.name))
		return nil
	}
	r.logger.Error("iterator failed to start", logger.Iterator(e.name), logger.Error(cause))
	return fmt.Errorf("start %s: %w", e.name, cause)
}

// ApplyConfiguration reconciles one iterator with rec:
// RUNNING and disabled stops it, NOT_RUNNING and enabled starts it, RUNNING with a changed
// record restarts it with the new settings, and an unchanged record does nothing.
func (r *Registry) ApplyConfiguration(ctx context.Context, rec IteratorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	e, err := r.lookup(rec.Name)
	if err != nil {
		if errors.Is(err, ErrIteratorNotRegistered) {
			r.logger.Warn("configuration for unknown iterator ignored", logger.Iterator(rec.Name))
		}
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if r.isClosed() {
		return ErrRegistryClosed
	}

	switch e.lc.current {
	case Init:
		if !rec.Enabled {
			return r.skip(e, &rec, nil)
		}
		if err := r.start(e, rec); err != nil {
			return r.skip(e, &rec, err)
		}
		return nil

	case Running:
		if e.cfg != nil && e.cfg.Equal(rec) {
			r.logger.Debug("configuration unchanged", logger.Iterator(e.name))
			return nil
		}
		if !rec.Enabled {
			return r.stop(e, rec)
		}
		return r.resize(e, rec)

	default:
		if !rec.Enabled {
			e.cfg = &rec
			return nil
		}
		if e.cfg != nil && e.cfg.Equal(rec) && errors.Is(e.lastErr, ErrRoleInactive) {
			return nil
		}
		if err := r.start(e, rec); err != nil && !errors.Is(err, ErrRoleInactive) {
			r.logger.Error("iterator failed to start", logger.Iterator(e.name), logger.Error(err))
			return fmt.Errorf("start %s: %w", e.name, err)
		}
		return nil
	}
}

// launch starts a new generation. Its context is cancelled when the generation is retired so
// nothing it spawned outlives a later stop or resize.
func (r *Registry) launch(e *entry, rec IteratorConfig) (Handle, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(logger.WithIterator(r.ctx, e.name))
	h, err := e.launcher.Launch(ctx, rec)
	if err == nil && h == nil {
		err = ErrRoleInactive
	}
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return h, cancel, nil
}

// retire stops the current generation. Cancelling its context comes first so a handle that
// fails to shut down cannot keep working.
func (e *entry) retire() error {
	if e.stop != nil {
		e.stop()
		e.stop = nil
	}
	if e.handle == nil {
		return nil
	}
	h := e.handle
	e.handle = nil
	return h.Shutdown()
}

func (r *Registry) start(e *entry, rec IteratorConfig) error {
	return e.lc.fire(eventStart, r.clock(), func() error {
		h, cancel, err := r.launch(e, rec)
		e.cfg = &rec
		e.lastErr = err
		if err != nil {
			if errors.Is(err, ErrRoleInactive) {
				r.logger.Info("iterator not started, role inactive", logger.Iterator(e.name))
			}
			return err
		}
		e.handle, e.stop = h, cancel
		e.generation++
		r.logger.Info("iterator started",
			logger.Iterator(e.name),
			slog.Uint64("generation", e.generation),
			logger.Mode(string(rec.Mode())))
		return nil
	})
}

func (r *Registry) stop(e *entry, rec IteratorConfig) error {
	var shutdownErr error
	if err := e.lc.fire(eventStop, r.clock(), func() error {
		shutdownErr = e.retire()
		return nil
	}); err != nil {
		return err
	}
	e.cfg = &rec
	e.lastErr = shutdownErr
	if shutdownErr != nil {
		r.logger.Error("iterator stopped with error", logger.Iterator(e.name), logger.Error(shutdownErr))
		return fmt.Errorf("stop %s: %w", e.name, shutdownErr)
	}
	r.logger.Info("iterator stopped", logger.Iterator(e.name))
	return nil
}

// resize launches the new generation before retiring the old one. When the launch fails the
// old generation keeps running with its previous record.
func (r *Registry) resize(e *entry, rec IteratorConfig) error {
	var shutdownErr error
	err := e.lc.fire(eventResize, r.clock(), func() error {
		h, cancel, err := r.launch(e, rec)
		if err != nil {
			return err
		}
		shutdownErr = e.retire()
		e.handle, e.stop = h, cancel
		e.cfg = &rec
		e.generation++
		return nil
	})
	if err != nil {
		e.lastErr = err
		r.logger.Error("iterator resize failed, keeping previous configuration",
			logger.Iterator(e.name), logger.Error(err))
		return fmt.Errorf("resize %s: %w", e.name, err)
	}
	e.lastErr = shutdownErr
	r.logger.Info("iterator resized",
		logger.Iterator(e.name),
		slog.Uint64("generation", e.generation),
		slog.Int("pool_size", rec.ThreadPoolSize))
	if shutdownErr != nil {
		return fmt.Errorf("resize %s: retire previous: %w", e.name, shutdownErr)
	}
	return nil
}

func (r *Registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// State returns the lifecycle state of name.
func (r *Registry) State(name string) (State, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrIteratorNotRegistered, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lc.current, nil
}

// Snapshot returns the status of every registered iterator in registration order.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, r.entries[name])
	}
	r.mu.RUnlock()

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		s := Status{
			Name:       e.name,
			State:      e.lc.current,
			Generation: e.generation,
			Since:      e.lc.since,
		}
		if e.cfg != nil {
			cfg := *e.cfg
			s.Config = &cfg
		}
		if e.lastErr != nil {
			s.Error = e.lastErr.Error()
		}
		e.mu.Unlock()
		out = append(out, s)
	}
	return out
}

// Shutdown stops every running iterator. Later calls to ApplyConfiguration return ErrRegistryClosed.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, r.entries[name])
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		if e.lc.can(eventStop) {
			var shutdownErr error
			_ = e.lc.fire(eventStop, r.clock(), func() error {
				shutdownErr = e.retire()
				return nil
			})
			if shutdownErr != nil {
				e.lastErr = shutdownErr
				errs = append(errs, fmt.Errorf("shutdown %s: %w", e.name, shutdownErr))
			}
		}
		e.mu.Unlock()
	}
	r.cancel()
	return errors.Join(errs...)
}
