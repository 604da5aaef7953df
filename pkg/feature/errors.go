package feature

import "errors"

var (
	// ErrFlagNotFound indicates that the requested flag does not exist.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrInvalidFlag indicates a nil flag or one without a name.
	ErrInvalidFlag = errors.New("invalid feature flag parameters")

	// ErrProviderNotInitialized indicates a gate built without a provider.
	ErrProviderNotInitialized = errors.New("feature provider not initialized")

	// ErrInvalidStrategy indicates a strategy that cannot be evaluated as configured.
	ErrInvalidStrategy = errors.New("invalid feature rollout strategy")
)
