package iterator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// roles is a role gate backed by a map.
type roles map[string]bool

func (r roles) IsEnabled(_ context.Context, role string) (bool, error) {
	return r[role], nil
}

type failingGate struct{}

func (failingGate) IsEnabled(context.Context, string) (bool, error) {
	return false, errors.New("flag service down")
}

func newFactory(t *testing.T, gate iterator.RoleGate) (*iterator.Factory, *iterator.Metrics) {
	t.Helper()
	m := newMetrics(t)
	f, err := iterator.NewFactory(gate,
		iterator.WithFactoryMetrics(m),
		iterator.WithFactoryLogger(logger.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Shutdown() })
	return f, m
}

func taskBuilder(name string, opts ...iterator.Option) iterator.Builder[*task] {
	return iterator.Builder[*task]{
		Name:    name,
		Field:   regularField,
		Store:   iterator.NewMemoryStore[*task](),
		Handler: iterator.HandlerFunc[*task](func(context.Context, *task) error { return nil }),
		Options: append([]iterator.Option{iterator.WithTargetInterval(time.Minute)}, opts...),
	}
}

func TestNewFactory(t *testing.T) {
	t.Parallel()

	_, err := iterator.NewFactory(nil)
	assert.ErrorIs(t, err, iterator.ErrRoleGateNil)
}

func TestCreateIterator(t *testing.T) {
	t.Parallel()

	t.Run("inactive role creates nothing", func(t *testing.T) {
		t.Parallel()

		f, _ := newFactory(t, roles{"probe": false})
		it, ok, err := iterator.CreateIterator(context.Background(), f, "probe", taskBuilder("probe-regular"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, it)
		assert.Empty(t, f.Runners())
	})

	t.Run("active role creates and starts the iterator", func(t *testing.T) {
		t.Parallel()

		f, _ := newFactory(t, roles{"probe": true})
		it, ok, err := iterator.CreateIterator(context.Background(), f, "probe",
			taskBuilder("probe-loop", iterator.WithProcessMode(iterator.Loop)))
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, it.Running())
		require.Len(t, f.Runners(), 1)

		require.NoError(t, f.Shutdown())
		assert.False(t, it.Running())
		assert.Empty(t, f.Runners())
	})

	t.Run("gate errors are returned", func(t *testing.T) {
		t.Parallel()

		f, _ := newFactory(t, failingGate{})
		_, ok, err := iterator.CreateIterator(context.Background(), f, "probe", taskBuilder("probe-regular"))
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid builder is rejected", func(t *testing.T) {
		t.Parallel()

		f, _ := newFactory(t, roles{"probe": true})
		b := taskBuilder("")
		_, ok, err := iterator.CreateIterator(context.Background(), f, "probe", b)
		assert.ErrorIs(t, err, iterator.ErrNameRequired)
		assert.False(t, ok)
	})
}

func TestCreatePumpIteratorWithDedicatedPool(t *testing.T) {
	t.Parallel()

	po := iterator.PumpExecutorOptions{Name: "probe-pool", PoolSize: 3, Interval: time.Second}

	t.Run("invalid pool options", func(t *testing.T) {
		t.Parallel()

		f, _ := newFactory(t, roles{"probe": true})
		_, _, err := iterator.CreatePumpIteratorWithDedicatedPool(context.Background(), f,
			iterator.PumpExecutorOptions{Name: "p"}, "probe", taskBuilder("probe-regular"))
		assert.ErrorIs(t, err, iterator.ErrInvalidPoolOptions)
	})

	t.Run("inactive role creates no pool", func(t *testing.T) {
		t.Parallel()

		f, m := newFactory(t, roles{})
		it, ok, err := iterator.CreatePumpIteratorWithDedicatedPool(context.Background(), f, po, "probe", taskBuilder("probe-regular"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, it)
		assert.Zero(t, testutil.CollectAndCount(m.Pools))
	})

	t.Run("active role runs in pump mode on its own pool", func(t *testing.T) {
		t.Parallel()

		f, m := newFactory(t, roles{"probe": true})
		it, ok, err := iterator.CreatePumpIteratorWithDedicatedPool(context.Background(), f, po, "probe",
			taskBuilder("probe-regular", iterator.WithProcessMode(iterator.Loop)))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, iterator.Pump, it.Config().ProcessMode)
		assert.Equal(t, time.Second, it.Config().PumpInterval)

		runners := f.Runners()
		require.Len(t, runners, 1)
		pool := runners[0].Pool()
		require.NotNil(t, pool)
		assert.Equal(t, 3, pool.Cap())
		assert.Equal(t, 4, testutil.CollectAndCount(m.Pools))

		require.NoError(t, f.Shutdown())
		assert.True(t, pool.IsClosed())
		assert.Zero(t, testutil.CollectAndCount(m.Pools))
	})
}

func TestLaunchAndRelease(t *testing.T) {
	t.Parallel()

	f, m := newFactory(t, roles{"probe": true})
	po := &iterator.PumpExecutorOptions{Name: "probe-pool", PoolSize: 2, Interval: time.Second}

	_, pooled, ok, err := iterator.Launch(context.Background(), f, "probe", taskBuilder("probe-pooled"), po)
	require.NoError(t, err)
	require.True(t, ok)
	_, shared, ok, err := iterator.Launch(context.Background(), f, "probe", taskBuilder("probe-shared"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, shared.Pool())
	require.Len(t, f.Runners(), 2)

	require.NoError(t, f.Release(pooled))
	assert.True(t, pooled.IsShutdown())
	assert.True(t, pooled.Pool().IsClosed())
	assert.Zero(t, testutil.CollectAndCount(m.Pools))
	require.Len(t, f.Runners(), 1)
	assert.Same(t, shared, f.Runners()[0])

	require.NoError(t, f.Release(pooled))
	require.NoError(t, f.Release(nil))
}
