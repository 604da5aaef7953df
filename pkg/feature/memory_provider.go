package feature

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// Wildcard is the flag consulted for names without a flag of their own.
const Wildcard = "*"

// MemoryProvider keeps flags in memory. It backs role gates built from process configuration.
type MemoryProvider struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewMemoryProvider creates a provider holding copies of flags.
func NewMemoryProvider(flags ...*Flag) (*MemoryProvider, error) {
	p := &MemoryProvider{flags: make(map[string]*Flag, len(flags))}
	for _, f := range flags {
		if f == nil {
			continue
		}
		if f.Name == "" {
			return nil, errors.Join(ErrInvalidFlag, errors.New("flag name cannot be empty"))
		}
		p.flags[f.Name] = clone(f)
	}
	return p, nil
}

// FromRoles creates a provider enabling each named role, optionally refined by strategy.
// Blank names are skipped and "*" enables every role.
func FromRoles(strategy Strategy, roles ...string) (*MemoryProvider, error) {
	flags := make([]*Flag, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		flags = append(flags, &Flag{Name: r, Enabled: true, Strategy: strategy, Tags: []string{"role"}})
	}
	return NewMemoryProvider(flags...)
}

func clone(f *Flag) *Flag {
	c := *f
	c.Tags = slices.Clone(f.Tags)
	return &c
}

func (m *MemoryProvider) lookup(name string) (*Flag, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.flags[name]; ok {
		return f, true
	}
	f, ok := m.flags[Wildcard]
	return f, ok
}

func (m *MemoryProvider) IsEnabled(ctx context.Context, name string) (bool, error) {
	f, ok := m.lookup(name)
	if !ok {
		return false, ErrFlagNotFound
	}
	if !f.Enabled {
		return false, nil
	}
	if f.Strategy == nil {
		return true, nil
	}
	return f.Strategy.Evaluate(ctx)
}

func (m *MemoryProvider) GetFlag(_ context.Context, name string) (*Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flags[name]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return clone(f), nil
}

func (m *MemoryProvider) ListFlags(_ context.Context, tags ...string) ([]*Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Flag, 0, len(m.flags))
	for _, f := range m.flags {
		if len(tags) > 0 && !slices.ContainsFunc(tags, func(t string) bool { return slices.Contains(f.Tags, t) }) {
			continue
		}
		out = append(out, clone(f))
	}
	slices.SortFunc(out, func(a, b *Flag) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *MemoryProvider) SetFlag(_ context.Context, f *Flag) error {
	if f == nil || f.Name == "" {
		return ErrInvalidFlag
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[f.Name] = clone(f)
	return nil
}

func (m *MemoryProvider) DeleteFlag(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flags[name]; !ok {
		return ErrFlagNotFound
	}
	delete(m.flags, name)
	return nil
}

// Close is a no-op.
func (m *MemoryProvider) Close() error { return nil }
