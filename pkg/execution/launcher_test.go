package execution_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/execution"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/feature"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

func newFactory(t *testing.T, roles ...string) *iterator.Factory {
	t.Helper()
	provider, err := feature.FromRoles(nil, roles...)
	require.NoError(t, err)
	gate, err := feature.NewGate(provider)
	require.NoError(t, err)
	m, err := iterator.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	f, err := iterator.NewFactory(gate,
		iterator.WithFactoryMetrics(m),
		iterator.WithFactoryLogger(logger.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Shutdown() })
	return f
}

func probeBuilder() iterator.Builder[*probe] {
	return iterator.Builder[*probe]{
		Field:   "nextRun",
		Store:   iterator.NewMemoryStore[*probe](),
		Handler: iterator.HandlerFunc[*probe](nopHandler),
	}
}

func TestIteratorLauncher(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pooled PUMP record gets a dedicated pool", func(t *testing.T) {
		t.Parallel()

		f := newFactory(t, "probe")
		r := execution.NewRegistry(execution.WithRegistryLogger(logger.Discard()))
		t.Cleanup(func() { _ = r.Shutdown() })
		require.NoError(t, r.Register("probe-regular", execution.IteratorLauncher(f, "probe", probeBuilder(), nil)))

		require.NoError(t, r.StartIterators(ctx, []execution.IteratorConfig{enabled("probe-regular")}))
		requireState(t, r, "probe-regular", execution.Running)

		runners := f.Runners()
		require.Len(t, runners, 1)
		assert.Equal(t, "probe-regular", runners[0].Name())
		assert.Equal(t, iterator.Pump, runners[0].Mode())
		pool := runners[0].Pool()
		require.NotNil(t, pool)
		assert.Equal(t, 2, pool.Cap())

		bigger := enabled("probe-regular")
		bigger.ThreadPoolSize = 5
		require.NoError(t, r.ApplyConfiguration(ctx, bigger))
		assert.True(t, pool.IsClosed())
		runners = f.Runners()
		require.Len(t, runners, 1)
		assert.Equal(t, 5, runners[0].Pool().Cap())

		require.NoError(t, r.ApplyConfiguration(ctx, disabled("probe-regular")))
		assert.Empty(t, f.Runners())
	})

	t.Run("inactive role leaves the iterator not running", func(t *testing.T) {
		t.Parallel()

		f := newFactory(t, "invoice")
		r := execution.NewRegistry(execution.WithRegistryLogger(logger.Discard()))
		t.Cleanup(func() { _ = r.Shutdown() })
		require.NoError(t, r.Register("probe-regular", execution.IteratorLauncher(f, "probe", probeBuilder(), nil)))

		require.NoError(t, r.StartIterators(ctx, []execution.IteratorConfig{enabled("probe-regular")}))
		requireState(t, r, "probe-regular", execution.NotRunning)
		assert.Empty(t, f.Runners())
	})

	t.Run("LOOP iterators join the wakeup hub while running", func(t *testing.T) {
		t.Parallel()

		f := newFactory(t, "probe")
		hub := iterator.NewWakeupHub(logger.Discard())
		r := execution.NewRegistry(execution.WithRegistryLogger(logger.Discard()))
		t.Cleanup(func() { _ = r.Shutdown() })
		require.NoError(t, r.Register("probe-loop", execution.IteratorLauncher(f, "probe", probeBuilder(), hub)))

		loop := execution.IteratorConfig{Name: "probe-loop", Enabled: true, TargetIntervalInSeconds: 60, IteratorMode: iterator.Loop}
		require.NoError(t, r.StartIterators(ctx, []execution.IteratorConfig{loop}))
		assert.Equal(t, 1, hub.Dispatch("probe-loop"))

		loop.Enabled = false
		require.NoError(t, r.ApplyConfiguration(ctx, loop))
		assert.Zero(t, hub.Dispatch("probe-loop"))
	})

	t.Run("nil factory", func(t *testing.T) {
		t.Parallel()

		_, err := execution.IteratorLauncher(nil, "probe", probeBuilder(), nil).Launch(ctx, enabled("a"))
		assert.ErrorIs(t, err, execution.ErrFactoryNil)
	})
}
