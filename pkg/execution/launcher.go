package execution

import (
	"context"
	"slices"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
)

// Handle is a running iterator as seen by the registry.
type Handle interface {
	Shutdown() error
}

// Launcher starts an iterator with the given record applied.
// Launchers return ErrRoleInactive when this process does not run the iterator.
type Launcher interface {
	Launch(ctx context.Context, cfg IteratorConfig) (Handle, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, cfg IteratorConfig) (Handle, error)

func (f LauncherFunc) Launch(ctx context.Context, cfg IteratorConfig) (Handle, error) {
	return f(ctx, cfg)
}

// IteratorLauncher launches iterators built from b through the factory. Records with a PUMP pool
// get a dedicated pool, all others share the factory executor. LOOP iterators are registered
// with hub, when given, for the lifetime of the handle.
func IteratorLauncher[T iterator.Entity](f *iterator.Factory, entityType string, b iterator.Builder[T], hub *iterator.WakeupHub) Launcher {
	return LauncherFunc(func(ctx context.Context, cfg IteratorConfig) (Handle, error) {
		if f == nil {
			return nil, ErrFactoryNil
		}
		build := b
		build.Name = cfg.Name
		build.Options = append(slices.Clone(b.Options), cfg.Options()...)

		it, r, ok, err := iterator.Launch(ctx, f, entityType, build, cfg.PumpOptions())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRoleInactive
		}

		h := &runnerHandle{factory: f, runner: r}
		if hub != nil && r.Mode() == iterator.Loop {
			h.unregister = hub.Register(it)
		}
		return h, nil
	})
}

type runnerHandle struct {
	factory    *iterator.Factory
	runner     *iterator.Runner
	unregister func()
}

func (h *runnerHandle) Shutdown() error {
	if h.unregister != nil {
		h.unregister()
	}
	return h.factory.Release(h.runner)
}
