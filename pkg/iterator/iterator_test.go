package iterator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iteration"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
)

func TestNew(t *testing.T) {
	t.Parallel()

	store := iterator.NewMemoryStore[*task]()
	handler := iterator.HandlerFunc[*task](func(context.Context, *task) error { return nil })

	t.Run("validates required arguments", func(t *testing.T) {
		t.Parallel()

		_, err := iterator.New[*task]("n", regularField, nil, handler)
		assert.ErrorIs(t, err, iterator.ErrStoreNil)

		_, err = iterator.New[*task]("n", regularField, store, nil)
		assert.ErrorIs(t, err, iterator.ErrHandlerNil)

		_, err = iterator.New("", regularField, store, handler)
		assert.ErrorIs(t, err, iterator.ErrNameRequired)

		_, err = iterator.New("n", "", store, handler)
		assert.ErrorIs(t, err, iterator.ErrFieldRequired)
	})

	t.Run("regular iterator needs an interval", func(t *testing.T) {
		t.Parallel()

		_, err := iterator.New("n", regularField, store, handler, baseOptions(t)...)
		assert.ErrorIs(t, err, iterator.ErrInvalidInterval)

		it, err := iterator.New("n", regularField, store, handler,
			baseOptions(t, iterator.WithThrottleInterval(time.Minute))...)
		require.NoError(t, err)
		assert.Equal(t, iterator.Regular, it.Config().SchedulingType)
		assert.Equal(t, iterator.Pump, it.Config().ProcessMode)
	})

	t.Run("list scheduling needs an irregular entity", func(t *testing.T) {
		t.Parallel()

		plainStore := iterator.NewMemoryStore[*plainTask]()
		_, err := iterator.New("n", listField, plainStore,
			iterator.HandlerFunc[*plainTask](func(context.Context, *plainTask) error { return nil }),
			baseOptions(t, iterator.WithSchedulingType(iterator.Irregular))...)
		assert.ErrorIs(t, err, iterator.ErrNotIrregular)

		it, err := iterator.New("n", listField, store, handler,
			baseOptions(t, iterator.WithSchedulingType(iterator.IrregularSkipMissed))...)
		require.NoError(t, err)
		assert.Equal(t, "n", it.Name())
		assert.Equal(t, listField, it.Field())
	})

	t.Run("invalid option values are ignored", func(t *testing.T) {
		t.Parallel()

		it, err := iterator.New("n", regularField, store, handler, baseOptions(t,
			iterator.WithTargetInterval(time.Minute),
			iterator.WithConcurrencyLimit(-1),
			iterator.WithBatchSize(0),
			iterator.WithProcessMode("SOMETIMES"),
		)...)
		require.NoError(t, err)
		assert.Equal(t, iterator.DefaultConcurrencyLimit, it.Config().ConcurrencyLimit)
		assert.Equal(t, iterator.DefaultBatchSize, it.Config().BatchSize)
		assert.Equal(t, iterator.Pump, it.Config().ProcessMode)
	})

	t.Run("negative concurrency in a config is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := iterator.New("n", regularField, store, handler, baseOptions(t,
			iterator.WithConfig(iterator.Config{TargetInterval: time.Minute, ConcurrencyLimit: -2}),
		)...)
		assert.ErrorIs(t, err, iterator.ErrInvalidConcurrency)

		it, err := iterator.New("n", regularField, store, handler, baseOptions(t,
			iterator.WithConfig(iterator.Config{TargetInterval: time.Minute}),
		)...)
		require.NoError(t, err)
		assert.Equal(t, iterator.DefaultConcurrencyLimit, it.Config().ConcurrencyLimit)
	})
}

func TestProcessRegular(t *testing.T) {
	t.Parallel()

	t.Run("empty store dispatches nothing", func(t *testing.T) {
		t.Parallel()

		rec := newRecorder()
		it, err := iterator.New("empty", regularField, iterator.NewMemoryStore[*task](),
			iterator.HandlerFunc[*task](func(_ context.Context, e *task) error {
				rec.record(e.ID)
				return nil
			}),
			baseOptions(t, iterator.WithTargetInterval(time.Minute))...)
		require.NoError(t, err)

		n, err := it.Process(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, rec.total.Load())
	})

	t.Run("due entities are handled and moved one interval ahead", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(
			dueTask("past", now.Add(-time.Hour)),
			dueTask("exact", now),
			&task{ID: "unscheduled"},
			dueTask("future", now.Add(time.Second)),
		)
		rec := newRecorder()
		exec := &trackingExecutor{}
		it, err := iterator.New("regular", regularField, store,
			iterator.HandlerFunc[*task](func(_ context.Context, e *task) error {
				rec.record(e.ID)
				return nil
			}),
			baseOptions(t,
				iterator.WithTargetInterval(5*time.Minute),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		n, err := it.Process(context.Background())
		require.NoError(t, err)
		exec.Wait()

		assert.Equal(t, 3, n)
		assert.Equal(t, map[string]int{"past": 1, "exact": 1, "unscheduled": 1}, rec.snapshot())
		for _, id := range []string{"past", "exact", "unscheduled"} {
			e, ok := store.Get(id)
			require.True(t, ok)
			assert.True(t, e.HasNext)
			assert.Equal(t, now.Add(5*time.Minute), e.Next, id)
		}
		future, _ := store.Get("future")
		assert.Equal(t, now.Add(time.Second), future.Next)

		n, err = it.Process(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n, "claimed entities are not due again within the interval")
	})

	t.Run("throttle mode uses the throttle interval", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(dueTask("a", now.Add(-time.Minute)))
		exec := &trackingExecutor{}
		it, err := iterator.New("throttle", regularField, store,
			iterator.HandlerFunc[*task](func(context.Context, *task) error { return nil }),
			baseOptions(t,
				iterator.WithTargetInterval(time.Hour),
				iterator.WithThrottleInterval(10*time.Second),
				iterator.WithNextIterationMode(iterator.Throttle),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		_, err = it.Process(context.Background())
		require.NoError(t, err)
		exec.Wait()

		e, _ := store.Get("a")
		assert.Equal(t, now.Add(10*time.Second), e.Next)
	})

	t.Run("redistribute spreads never scheduled entities", func(t *testing.T) {
		t.Parallel()

		var entities []*task
		for i := range 20 {
			entities = append(entities, &task{ID: fmt.Sprintf("e%02d", i)})
		}
		store := iterator.NewMemoryStore(entities...)
		exec := &trackingExecutor{}
		it, err := iterator.New("spread", regularField, store,
			iterator.HandlerFunc[*task](func(context.Context, *task) error { return nil }),
			baseOptions(t,
				iterator.WithTargetInterval(time.Hour),
				iterator.WithRedistribute(true),
				iterator.WithConcurrencyLimit(50),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		_, err = it.Process(context.Background())
		require.NoError(t, err)
		exec.Wait()

		for _, e := range entities {
			got, _ := store.Get(e.ID)
			assert.False(t, got.Next.Before(now))
			assert.True(t, got.Next.Before(now.Add(time.Hour)))
		}
	})

	t.Run("filter narrows candidates", func(t *testing.T) {
		t.Parallel()

		a := dueTask("a", now.Add(-time.Minute))
		a.Group = "blue"
		b := dueTask("b", now.Add(-time.Minute))
		b.Group = "red"
		store := iterator.NewMemoryStore(a, b)
		rec := newRecorder()
		exec := &trackingExecutor{}
		it, err := iterator.New("blue-only", regularField, store,
			iterator.HandlerFunc[*task](func(_ context.Context, e *task) error {
				rec.record(e.ID)
				return nil
			}),
			baseOptions(t,
				iterator.WithTargetInterval(time.Minute),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
				iterator.WithFilter(iterator.Filter{Match: func(e iterator.Entity) bool {
					return e.(*task).Group == "blue"
				}}),
			)...)
		require.NoError(t, err)

		_, err = it.Process(context.Background())
		require.NoError(t, err)
		exec.Wait()
		assert.Equal(t, map[string]int{"a": 1}, rec.snapshot())
	})

	t.Run("maintenance pause skips the pass", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(dueTask("a", now.Add(-time.Minute)))
		m := iterator.NewMaintenance()
		m.Pause()
		it, err := iterator.New("paused", regularField, store,
			iterator.HandlerFunc[*task](func(context.Context, *task) error { return nil }),
			baseOptions(t,
				iterator.WithTargetInterval(time.Minute),
				iterator.WithMaintenance(m),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		n, err := it.Process(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		e, _ := store.Get("a")
		assert.Equal(t, now.Add(-time.Minute), e.Next)
	})
}

func TestProcessClaimIsExclusive(t *testing.T) {
	t.Parallel()

	const entities, processes = 60, 4

	var seed []*task
	for i := range entities {
		seed = append(seed, dueTask(fmt.Sprintf("e%02d", i), now.Add(-time.Duration(i)*time.Second)))
	}
	store := iterator.NewMemoryStore(seed...)
	rec := newRecorder()
	exec := &trackingExecutor{}

	iterators := make([]*iterator.Iterator[*task], processes)
	for i := range iterators {
		it, err := iterator.New("shared", regularField, store,
			iterator.HandlerFunc[*task](func(_ context.Context, e *task) error {
				rec.record(e.ID)
				return nil
			}),
			baseOptions(t,
				iterator.WithTargetInterval(time.Hour),
				iterator.WithConcurrencyLimit(entities),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)
		iterators[i] = it
	}

	var wg sync.WaitGroup
	for _, it := range iterators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := it.Process(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	exec.Wait()

	assert.EqualValues(t, entities, rec.total.Load())
	for _, e := range seed {
		assert.Equal(t, 1, rec.count(e.ID), e.ID)
	}
}

func TestProcessDefersWithoutPermits(t *testing.T) {
	t.Parallel()

	store := iterator.NewMemoryStore(
		dueTask("a", now.Add(-5*time.Second)),
		dueTask("b", now.Add(-4*time.Second)),
		dueTask("c", now.Add(-3*time.Second)),
		dueTask("d", now.Add(-2*time.Second)),
		dueTask("e", now.Add(-1*time.Second)),
	)
	release := make(chan struct{})
	rec := newRecorder()
	exec := &trackingExecutor{}
	it, err := iterator.New("limited", regularField, store,
		iterator.HandlerFunc[*task](func(_ context.Context, e *task) error {
			rec.record(e.ID)
			<-release
			return nil
		}),
		baseOptions(t,
			iterator.WithTargetInterval(time.Hour),
			iterator.WithConcurrencyLimit(2),
			iterator.WithExecutor(exec),
			iterator.WithClock(fixedClock),
		)...)
	require.NoError(t, err)

	n, err := it.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = it.Process(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "no permits left while handlers are blocked")

	for _, id := range []string{"c", "d", "e"} {
		e, _ := store.Get(id)
		assert.True(t, e.Next.Before(now), "%s must stay due", id)
	}

	close(release)
	exec.Wait()

	n, err = it.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	exec.Wait()

	n, err = it.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	exec.Wait()

	assert.EqualValues(t, 5, rec.total.Load())
}

func TestProcessEntityIsolatesFailures(t *testing.T) {
	t.Parallel()

	store := iterator.NewMemoryStore(
		dueTask("fails", now.Add(-3*time.Second)),
		dueTask("panics", now.Add(-2*time.Second)),
		dueTask("works", now.Add(-time.Second)),
	)
	rec := newRecorder()
	exec := &trackingExecutor{}
	it, err := iterator.New("isolated", regularField, store,
		iterator.HandlerFunc[*task](func(_ context.Context, e *task) error {
			rec.record(e.ID)
			switch e.ID {
			case "fails":
				return errors.New("boom")
			case "panics":
				panic("kaboom")
			}
			return nil
		}),
		baseOptions(t,
			iterator.WithTargetInterval(time.Minute),
			iterator.WithExecutor(exec),
			iterator.WithClock(fixedClock),
		)...)
	require.NoError(t, err)

	n, err := it.Process(context.Background())
	require.NoError(t, err)
	exec.Wait()
	assert.Equal(t, 3, n)
	assert.Equal(t, map[string]int{"fails": 1, "panics": 1, "works": 1}, rec.snapshot())

	err = it.ProcessEntity(context.Background(), dueTask("panics", now))
	assert.ErrorIs(t, err, iterator.ErrHandlerPanic)

	err = it.ProcessEntity(context.Background(), dueTask("fails", now))
	assert.EqualError(t, err, "boom")
}

func TestProcessIrregular(t *testing.T) {
	t.Parallel()

	every10m := iteration.Irregular{
		Count: 3,
		Generator: iteration.GeneratorFunc(func(from time.Time) (time.Time, bool) {
			return from.Add(10 * time.Minute), true
		}),
	}

	t.Run("claimed head is removed and the list is recomputed", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(listTask("a", every10m, now.Add(-time.Minute), now.Add(5*time.Minute)))
		exec := &trackingExecutor{}
		it, err := iterator.New("list", listField, store,
			iterator.HandlerFunc[*task](func(context.Context, *task) error { return nil }),
			baseOptions(t,
				iterator.WithSchedulingType(iterator.IrregularSkipMissed),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		n, err := it.Process(context.Background())
		require.NoError(t, err)
		exec.Wait()
		assert.Equal(t, 1, n)

		e, _ := store.Get("a")
		assert.Equal(t, []time.Time{
			now.Add(5 * time.Minute),
			now.Add(15 * time.Minute),
			now.Add(25 * time.Minute),
		}, e.Iterations)
	})

	t.Run("entries appended during handling survive the reschedule", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(listTask("a", every10m, now.Add(-time.Minute), now.Add(5*time.Minute)))
		exec := &trackingExecutor{}
		it, err := iterator.New("list", listField, store,
			iterator.HandlerFunc[*task](func(ctx context.Context, e *task) error {
				return store.PushIteration(ctx, e.ID, listField, now.Add(7*time.Minute))
			}),
			baseOptions(t,
				iterator.WithSchedulingType(iterator.IrregularSkipMissed),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		_, err = it.Process(context.Background())
		require.NoError(t, err)
		exec.Wait()

		e, _ := store.Get("a")
		assert.Equal(t, []time.Time{
			now.Add(5 * time.Minute),
			now.Add(7 * time.Minute),
			now.Add(17 * time.Minute),
		}, e.Iterations)
	})

	t.Run("missed entries are kept without skip missed", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(listTask("a", nil, now.Add(-2*time.Minute), now.Add(-time.Minute)))
		rec := newRecorder()
		exec := &trackingExecutor{}
		it, err := iterator.New("catch-up", listField, store,
			iterator.HandlerFunc[*task](func(_ context.Context, e *task) error {
				rec.record(e.ID)
				return nil
			}),
			baseOptions(t,
				iterator.WithSchedulingType(iterator.Irregular),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		for range 3 {
			_, err = it.Process(context.Background())
			require.NoError(t, err)
			exec.Wait()
		}

		assert.Equal(t, 2, rec.count("a"))
		e, _ := store.Get("a")
		assert.Empty(t, e.Iterations)
	})

	t.Run("failed handler leaves the schedule alone", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(listTask("a", every10m, now.Add(-time.Minute), now.Add(5*time.Minute)))
		exec := &trackingExecutor{}
		it, err := iterator.New("list", listField, store,
			iterator.HandlerFunc[*task](func(context.Context, *task) error { return errors.New("nope") }),
			baseOptions(t,
				iterator.WithSchedulingType(iterator.IrregularSkipMissed),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		_, err = it.Process(context.Background())
		require.NoError(t, err)
		exec.Wait()

		e, _ := store.Get("a")
		assert.Equal(t, []time.Time{now.Add(-time.Minute), now.Add(5 * time.Minute)}, e.Iterations)
	})

	t.Run("repeated handler failures keep a single entry due", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(listTask("a", every10m, now.Add(-time.Minute)))
		exec := &trackingExecutor{}
		var calls atomic.Int32
		it, err := iterator.New("list", listField, store,
			iterator.HandlerFunc[*task](func(context.Context, *task) error {
				calls.Add(1)
				return errors.New("nope")
			}),
			baseOptions(t,
				iterator.WithSchedulingType(iterator.IrregularSkipMissed),
				iterator.WithExecutor(exec),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		for range 3 {
			n, err := it.Process(context.Background())
			require.NoError(t, err)
			exec.Wait()
			assert.Equal(t, 1, n)
		}

		assert.EqualValues(t, 3, calls.Load())
		e, _ := store.Get("a")
		assert.Equal(t, []time.Time{now.Add(-time.Minute)}, e.Iterations)
	})

	t.Run("broken recalculation restores the claimed entry", func(t *testing.T) {
		t.Parallel()

		unsorted := strategyFunc(func([]time.Time, bool, time.Time) ([]time.Time, bool) {
			return []time.Time{now.Add(2 * time.Minute), now.Add(time.Minute)}, true
		})
		panicking := strategyFunc(func([]time.Time, bool, time.Time) ([]time.Time, bool) {
			panic("bad schedule")
		})

		for name, s := range map[string]iteration.Strategy{"unsorted": unsorted, "panicking": panicking} {
			store := iterator.NewMemoryStore(listTask(name, s, now.Add(-time.Minute)))
			exec := &trackingExecutor{}
			var handled atomic.Int32
			it, err := iterator.New("broken", listField, store,
				iterator.HandlerFunc[*task](func(context.Context, *task) error {
					handled.Add(1)
					return nil
				}),
				baseOptions(t,
					iterator.WithSchedulingType(iterator.IrregularSkipMissed),
					iterator.WithExecutor(exec),
					iterator.WithClock(fixedClock),
				)...)
			require.NoError(t, err)

			n, err := it.Process(context.Background())
			require.NoError(t, err)
			exec.Wait()
			assert.Equal(t, 1, n, name)
			assert.EqualValues(t, 1, handled.Load(), name)

			got, _ := store.Get(name)
			assert.Equal(t, []time.Time{now.Add(-time.Minute)}, got.Iterations, name)

			e, _ := store.Get(name)
			assert.ErrorIs(t, it.ProcessEntity(context.Background(), e), iterator.ErrRecalculation, name)
		}
	})
}

func TestRecoverAfterPause(t *testing.T) {
	t.Parallel()

	cron, err := iteration.ParseCron("0 * * * * *")
	require.NoError(t, err)

	t.Run("empty list schedules are regenerated", func(t *testing.T) {
		t.Parallel()

		store := iterator.NewMemoryStore(
			listTask("empty", cron),
			listTask("scheduled", cron, now.Add(time.Minute)),
		)
		it, err := iterator.New("recover", listField, store,
			iterator.HandlerFunc[*task](func(context.Context, *task) error { return nil }),
			baseOptions(t,
				iterator.WithSchedulingType(iterator.IrregularSkipMissed),
				iterator.WithClock(fixedClock),
			)...)
		require.NoError(t, err)

		n, err := it.RecoverAfterPause(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		e, _ := store.Get("empty")
		require.Len(t, e.Iterations, iteration.LookaheadCount)
		for _, at := range e.Iterations {
			assert.True(t, at.After(now))
		}
		other, _ := store.Get("scheduled")
		assert.Equal(t, []time.Time{now.Add(time.Minute)}, other.Iterations)
	})

	t.Run("regular iterators have nothing to recover", func(t *testing.T) {
		t.Parallel()

		it, err := iterator.New("recover", regularField, iterator.NewMemoryStore(&task{ID: "a"}),
			iterator.HandlerFunc[*task](func(context.Context, *task) error { return nil }),
			baseOptions(t, iterator.WithTargetInterval(time.Minute))...)
		require.NoError(t, err)

		n, err := it.RecoverAfterPause(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
