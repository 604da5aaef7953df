package logger

import (
	"context"
	"log/slog"
)

type (
	iteratorKey struct{}
	entityKey   struct{}
)

// WithIterator stores the iterator name in ctx.
func WithIterator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, iteratorKey{}, name)
}

// IteratorFromContext returns the iterator name stored by WithIterator.
func IteratorFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(iteratorKey{}).(string)
	return name, ok && name != ""
}

// WithEntityID stores the entity id in ctx.
func WithEntityID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, entityKey{}, id)
}

// EntityIDFromContext returns the entity id stored by WithEntityID.
func EntityIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(entityKey{}).(string)
	return id, ok && id != ""
}

func iteratorExtractor(ctx context.Context) (slog.Attr, bool) {
	if name, ok := IteratorFromContext(ctx); ok {
		return Iterator(name), true
	}
	return slog.Attr{}, false
}

func entityExtractor(ctx context.Context) (slog.Attr, bool) {
	if id, ok := EntityIDFromContext(ctx); ok {
		return EntityID(id), true
	}
	return slog.Attr{}, false
}
