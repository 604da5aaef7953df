package feature

import (
	"context"
	"errors"
	"slices"
)

type alwaysStrategy bool

func (s alwaysStrategy) Evaluate(context.Context) (bool, error) { return bool(s), nil }

// NewAlwaysOnStrategy enables the flag everywhere.
func NewAlwaysOnStrategy() Strategy { return alwaysStrategy(true) }

// NewAlwaysOffStrategy disables the flag everywhere, keeping it listed.
func NewAlwaysOffStrategy() Strategy { return alwaysStrategy(false) }

// EnvironmentStrategy enables a flag only in the listed deployment environments.
type EnvironmentStrategy struct {
	Environments []string
	extract      EnvironmentExtractor
}

// EnvironmentStrategyOption configures an EnvironmentStrategy.
type EnvironmentStrategyOption func(*EnvironmentStrategy)

// WithEnvironmentExtractor replaces EnvironmentFromContext.
func WithEnvironmentExtractor(fn EnvironmentExtractor) EnvironmentStrategyOption {
	return func(s *EnvironmentStrategy) {
		if fn != nil {
			s.extract = fn
		}
	}
}

// NewEnvironmentStrategy enables the flag in environments.
func NewEnvironmentStrategy(environments []string, opts ...EnvironmentStrategyOption) Strategy {
	s := &EnvironmentStrategy{Environments: environments, extract: EnvironmentFromContext}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EnvironmentStrategy) Evaluate(ctx context.Context) (bool, error) {
	if len(s.Environments) == 0 {
		return false, errors.Join(ErrInvalidStrategy, errors.New("no environments listed"))
	}
	env := s.extract(ctx)
	return env != "" && slices.Contains(s.Environments, env), nil
}

// CompositeStrategy combines strategies: all must pass when All is set, otherwise any.
type CompositeStrategy struct {
	Strategies []Strategy
	All        bool
}

func (s *CompositeStrategy) Evaluate(ctx context.Context) (bool, error) {
	if len(s.Strategies) == 0 {
		return false, errors.Join(ErrInvalidStrategy, errors.New("composite without strategies"))
	}
	for _, st := range s.Strategies {
		ok, err := st.Evaluate(ctx)
		if err != nil {
			return false, err
		}
		if ok != s.All {
			return ok, nil
		}
	}
	return s.All, nil
}

// NewAndStrategy passes when every strategy passes.
func NewAndStrategy(strategies ...Strategy) Strategy {
	return &CompositeStrategy{Strategies: strategies, All: true}
}

// NewOrStrategy passes when any strategy passes.
func NewOrStrategy(strategies ...Strategy) Strategy {
	return &CompositeStrategy{Strategies: strategies}
}
