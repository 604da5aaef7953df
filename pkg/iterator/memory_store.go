package iterator

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iteration"
)

// MemoryEntity is what MemoryStore needs to read and rewrite schedules in place.
type MemoryEntity[T any] interface {
	Entity
	NextIterations(field string) []time.Time
	SetNextIteration(field string, at time.Time, scheduled bool)
	SetNextIterations(field string, list []time.Time)
	Clone() T
}

// MemoryStore implements Store for testing and local development.
// Entities are cloned on the way in and out so callers never share state with the store.
type MemoryStore[T MemoryEntity[T]] struct {
	mu       sync.RWMutex
	entities map[string]T
}

// NewMemoryStore creates a store holding entities.
func NewMemoryStore[T MemoryEntity[T]](entities ...T) *MemoryStore[T] {
	s := &MemoryStore[T]{entities: make(map[string]T, len(entities))}
	for _, e := range entities {
		s.entities[e.EntityID()] = e.Clone()
	}
	return s
}

// Save inserts or replaces an entity.
func (s *MemoryStore[T]) Save(entity T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[entity.EntityID()] = entity.Clone()
}

// Delete removes an entity.
func (s *MemoryStore[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
}

// Get returns a copy of an entity.
func (s *MemoryStore[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.Clone(), true
}

// Len returns the number of stored entities.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

func (s *MemoryStore[T]) matches(e T, f Filter) bool {
	return f.Match == nil || f.Match(e)
}

// dueAt returns the first due time; regular entities without a schedule are due immediately.
func dueAt(e Entity, q Query) (time.Time, bool) {
	t, ok := e.NextIteration(q.Field)
	if !ok && !q.List {
		return time.Time{}, true
	}
	return t, ok
}

func (s *MemoryStore[T]) FindDue(_ context.Context, q Query) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type candidate struct {
		entity T
		due    time.Time
	}
	var found []candidate
	for _, e := range s.entities {
		if !s.matches(e, q.Filter) {
			continue
		}
		due, ok := dueAt(e, q)
		if !ok || due.After(q.Now) {
			continue
		}
		found = append(found, candidate{entity: e, due: due})
	}

	slices.SortFunc(found, func(a, b candidate) int {
		if c := a.due.Compare(b.due); c != 0 {
			return c
		}
		return compareIDs(a.entity.EntityID(), b.entity.EntityID())
	})
	if q.Limit > 0 && len(found) > q.Limit {
		found = found[:q.Limit]
	}

	out := make([]T, 0, len(found))
	for _, c := range found {
		out = append(out, c.entity.Clone())
	}
	return out, nil
}

func compareIDs(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (s *MemoryStore[T]) Claim(_ context.Context, c Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[c.ID]
	if !ok {
		return ErrClaimConflict
	}

	if c.List {
		list := e.NextIterations(c.Field)
		if len(list) == 0 || !list[0].Equal(c.Observed) {
			return ErrClaimConflict
		}
		e.SetNextIterations(c.Field, slices.Clone(list[1:]))
		return nil
	}

	current, scheduled := e.NextIteration(c.Field)
	if scheduled != c.Scheduled || (scheduled && !current.Equal(c.Observed)) {
		return ErrClaimConflict
	}
	e.SetNextIteration(c.Field, c.Next, true)
	return nil
}

func (s *MemoryStore[T]) Load(_ context.Context, id string) (T, error) {
	e, ok := s.Get(id)
	if !ok {
		return e, ErrEntityNotFound
	}
	return e, nil
}

func (s *MemoryStore[T]) EarliestDue(_ context.Context, q Query) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		earliest time.Time
		found    bool
	)
	for _, e := range s.entities {
		if !s.matches(e, q.Filter) {
			continue
		}
		due, ok := dueAt(e, q)
		if !ok {
			continue
		}
		if due.IsZero() {
			due = q.Now
		}
		if !found || due.Before(earliest) {
			earliest, found = due, true
		}
	}
	return earliest, found, nil
}

func (s *MemoryStore[T]) FindUnscheduled(_ context.Context, q Query) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []T
	for _, e := range s.entities {
		if !s.matches(e, q.Filter) {
			continue
		}
		if len(e.NextIterations(q.Field)) == 0 {
			out = append(out, e.Clone())
		}
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore[T]) ReplaceIterations(_ context.Context, id, field string, expected, next []time.Time) error {
	return s.update(id, func(e T) error {
		if !iteration.Equal(e.NextIterations(field), expected) {
			return ErrConcurrentModification
		}
		e.SetNextIterations(field, slices.Clone(next))
		return nil
	})
}

func (s *MemoryStore[T]) PushIteration(_ context.Context, id, field string, at time.Time) error {
	return s.update(id, func(e T) error {
		e.SetNextIterations(field, iteration.Normalize(append(e.NextIterations(field), at)))
		return nil
	})
}

func (s *MemoryStore[T]) RemoveFirstIteration(_ context.Context, id, field string) error {
	return s.update(id, func(e T) error {
		if list := e.NextIterations(field); len(list) > 0 {
			e.SetNextIterations(field, slices.Clone(list[1:]))
		}
		return nil
	})
}

func (s *MemoryStore[T]) RemoveIteration(_ context.Context, id, field string, at time.Time) error {
	return s.update(id, func(e T) error {
		list := slices.DeleteFunc(slices.Clone(e.NextIterations(field)), func(t time.Time) bool {
			return t.Equal(at)
		})
		e.SetNextIterations(field, list)
		return nil
	})
}

func (s *MemoryStore[T]) UnsetIterations(_ context.Context, id, field string) error {
	return s.update(id, func(e T) error {
		e.SetNextIterations(field, nil)
		e.SetNextIteration(field, time.Time{}, false)
		return nil
	})
}

func (s *MemoryStore[T]) update(id string, fn func(T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return ErrEntityNotFound
	}
	return fn(e)
}
