package iterator

import (
	"context"
	"time"
)

// Entity is a persisted work item carrying its own schedule.
type Entity interface {
	// EntityID returns the unique identifier of the record.
	EntityID() string
	// NextIteration returns the earliest time the entity is due for the given schedule field.
	// The bool is false when the entity is not scheduled.
	NextIteration(field string) (time.Time, bool)
}

// IrregularEntity is an entity with a list-valued schedule that knows how to recompute it.
// Implementations typically delegate to a strategy from the iteration package.
type IrregularEntity interface {
	Entity
	// NextIterations returns the stored list for field, ascending.
	NextIterations(field string) []time.Time
	// RecalculateNextIterations returns the list to store next. A false bool means the stored
	// list must be left untouched.
	RecalculateNextIterations(field string, skipMissed bool, now time.Time) ([]time.Time, bool)
}

// Handler processes one claimed entity.
type Handler[T Entity] interface {
	Handle(ctx context.Context, entity T) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[T Entity] func(ctx context.Context, entity T) error

func (f HandlerFunc[T]) Handle(ctx context.Context, entity T) error {
	return f(ctx, entity)
}
