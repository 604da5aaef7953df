package iterator_test

import (
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iteration"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

const (
	regularField = "nextRun"
	listField    = "nextRuns"
)

var now = time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

func fixedClock() time.Time { return now }

// task is a test entity with one regular and one list schedule field.
type task struct {
	ID         string
	Next       time.Time
	HasNext    bool
	Iterations []time.Time
	Group      string

	strategy iteration.Strategy
}

func (t *task) EntityID() string { return t.ID }

func (t *task) NextIteration(field string) (time.Time, bool) {
	if field == listField {
		return iteration.First(t.Iterations)
	}
	return t.Next, t.HasNext
}

func (t *task) NextIterations(string) []time.Time { return t.Iterations }

func (t *task) SetNextIteration(_ string, at time.Time, scheduled bool) {
	t.Next, t.HasNext = at, scheduled
}

func (t *task) SetNextIterations(_ string, list []time.Time) { t.Iterations = list }

func (t *task) Clone() *task {
	c := *t
	c.Iterations = slices.Clone(t.Iterations)
	return &c
}

func (t *task) RecalculateNextIterations(_ string, skipMissed bool, now time.Time) ([]time.Time, bool) {
	s := t.strategy
	if s == nil {
		s = iteration.Irregular{}
	}
	return s.Recalculate(t.Iterations, skipMissed, now)
}

func dueTask(id string, at time.Time) *task {
	return &task{ID: id, Next: at, HasNext: true}
}

func listTask(id string, s iteration.Strategy, at ...time.Time) *task {
	return &task{ID: id, Iterations: at, strategy: s}
}

// plainTask cannot recalculate its own schedule.
type plainTask struct{ ID string }

func (p *plainTask) EntityID() string                         { return p.ID }
func (p *plainTask) NextIteration(string) (time.Time, bool)   { return time.Time{}, false }
func (p *plainTask) NextIterations(string) []time.Time        { return nil }
func (p *plainTask) SetNextIteration(string, time.Time, bool) {}
func (p *plainTask) SetNextIterations(string, []time.Time)    {}
func (p *plainTask) Clone() *plainTask                        { c := *p; return &c }

// strategyFunc lets tests inject broken strategies.
type strategyFunc func(current []time.Time, skipMissed bool, now time.Time) ([]time.Time, bool)

func (f strategyFunc) Recalculate(current []time.Time, skipMissed bool, now time.Time) ([]time.Time, bool) {
	return f(current, skipMissed, now)
}

// trackingExecutor runs every task on its own goroutine and lets tests wait for completion.
type trackingExecutor struct {
	wg sync.WaitGroup
}

func (e *trackingExecutor) Submit(fn func()) error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
	return nil
}

func (e *trackingExecutor) Wait() { e.wg.Wait() }

// recorder is a handler counting invocations per entity.
type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string]int)}
}

func (r *recorder) record(id string) {
	r.mu.Lock()
	r.calls[id]++
	r.mu.Unlock()
	r.total.Add(1)
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func (r *recorder) snapshot() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.calls))
	for k, v := range r.calls {
		out[k] = v
	}
	return out
}

func newMetrics(t *testing.T) *iterator.Metrics {
	t.Helper()
	m, err := iterator.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

// baseOptions keep tests off the process-wide defaults.
func baseOptions(t *testing.T, extra ...iterator.Option) []iterator.Option {
	t.Helper()
	opts := []iterator.Option{
		iterator.WithMetrics(newMetrics(t)),
		iterator.WithLogger(logger.Discard()),
	}
	return append(opts, extra...)
}
