package execution_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/execution"
)

// probe is a minimal regular entity.
type probe struct {
	ID      string
	Next    time.Time
	HasNext bool
}

func (p *probe) EntityID() string { return p.ID }

func (p *probe) NextIteration(string) (time.Time, bool) { return p.Next, p.HasNext }

func (p *probe) NextIterations(string) []time.Time { return nil }

func (p *probe) SetNextIteration(_ string, at time.Time, scheduled bool) {
	p.Next, p.HasNext = at, scheduled
}

func (p *probe) SetNextIterations(string, []time.Time) {}

func (p *probe) Clone() *probe {
	c := *p
	return &c
}

func nopHandler(context.Context, *probe) error { return nil }

type fakeHandle struct {
	cfg     execution.IteratorConfig
	ctx     context.Context
	stopped atomic.Bool
	err     error
}

func (h *fakeHandle) Shutdown() error {
	h.stopped.Store(true)
	return h.err
}

// fakeLauncher records every launch and hands out fakeHandles.
type fakeLauncher struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	fail     error
	inactive bool
	stopErr  error
}

func (l *fakeLauncher) Launch(ctx context.Context, cfg execution.IteratorConfig) (execution.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	if l.inactive {
		return nil, execution.ErrRoleInactive
	}
	h := &fakeHandle{cfg: cfg, ctx: ctx, err: l.stopErr}
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLauncher) launches() []*fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*fakeHandle, len(l.handles))
	copy(out, l.handles)
	return out
}

func (l *fakeLauncher) set(fn func(l *fakeLauncher)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l)
}

var errLaunch = errors.New("launch failed")

func enabled(name string) execution.IteratorConfig {
	return execution.IteratorConfig{Name: name, Enabled: true, ThreadPoolSize: 2, ThreadPoolIntervalInSeconds: 1, TargetIntervalInSeconds: 60}
}

func disabled(name string) execution.IteratorConfig {
	c := enabled(name)
	c.Enabled = false
	return c
}
