package feature

import (
	"context"
	"errors"
)

// Flag switches one role on or off. A role is usually an entity type whose iterators a
// process may run.
type Flag struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Strategy    Strategy `json:"-" yaml:"-"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Strategy refines an enabled flag for the evaluating context.
type Strategy interface {
	Evaluate(ctx context.Context) (bool, error)
}

// EnvironmentExtractor returns the deployment environment carried by ctx.
type EnvironmentExtractor func(ctx context.Context) string

// Provider stores flags and evaluates them.
type Provider interface {
	// IsEnabled evaluates a flag. A missing flag yields ErrFlagNotFound.
	IsEnabled(ctx context.Context, name string) (bool, error)
	// GetFlag returns a copy of the flag or ErrFlagNotFound.
	GetFlag(ctx context.Context, name string) (*Flag, error)
	// ListFlags returns copies of all flags, or of those carrying any of tags.
	ListFlags(ctx context.Context, tags ...string) ([]*Flag, error)
	// SetFlag creates or replaces a flag.
	SetFlag(ctx context.Context, flag *Flag) error
	// DeleteFlag removes a flag or returns ErrFlagNotFound.
	DeleteFlag(ctx context.Context, name string) error
	Close() error
}

// Gate checks roles against a provider. Unknown roles are inactive rather than an error, so a
// process only runs the roles it was explicitly given.
type Gate struct {
	provider Provider
}

// NewGate wraps p.
func NewGate(p Provider) (*Gate, error) {
	if p == nil {
		return nil, ErrProviderNotInitialized
	}
	return &Gate{provider: p}, nil
}

// IsEnabled reports whether role is active for this process.
func (g *Gate) IsEnabled(ctx context.Context, role string) (bool, error) {
	ok, err := g.provider.IsEnabled(ctx, role)
	if errors.Is(err, ErrFlagNotFound) {
		return false, nil
	}
	return ok, err
}

type environmentKey struct{}

// WithEnvironment stores the deployment environment in ctx for EnvironmentStrategy.
func WithEnvironment(ctx context.Context, env string) context.Context {
	return context.WithValue(ctx, environmentKey{}, env)
}

// EnvironmentFromContext is the default EnvironmentExtractor.
func EnvironmentFromContext(ctx context.Context) string {
	env, _ := ctx.Value(environmentKey{}).(string)
	return env
}
