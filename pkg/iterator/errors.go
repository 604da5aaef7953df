package iterator

import "errors"

var (
	// ErrStoreNil is returned when a nil store is provided
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrHandlerNil is returned when a nil handler is provided
	ErrHandlerNil = errors.New("handler cannot be nil")

	// ErrNameRequired is returned when an iterator is created without a name
	ErrNameRequired = errors.New("iterator name is required")

	// ErrFieldRequired is returned when an iterator is created without a schedule field
	ErrFieldRequired = errors.New("schedule field is required")

	// ErrInvalidInterval is returned when a regular iterator has no positive interval
	ErrInvalidInterval = errors.New("regular iterators need a positive target or throttle interval")

	// ErrInvalidConcurrency is returned when a Config carries a negative concurrency limit
	ErrInvalidConcurrency = errors.New("concurrency limit must not be negative")

	// ErrNotIrregular is returned when list scheduling is requested for an entity type
	// that cannot recalculate its own schedule
	ErrNotIrregular = errors.New("entity does not implement IrregularEntity")

	// ErrClaimConflict is returned by stores when another actor claimed the entity first
	ErrClaimConflict = errors.New("entity already claimed")

	// ErrConcurrentModification is returned by stores when a conditional list write lost a race
	ErrConcurrentModification = errors.New("schedule modified concurrently")

	// ErrEntityNotFound is returned when an entity disappeared from the store
	ErrEntityNotFound = errors.New("entity not found")

	// ErrRecalculation wraps failures raised by an entity's own schedule computation
	ErrRecalculation = errors.New("schedule recalculation failed")

	// ErrHandlerPanic wraps panics recovered from handlers
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrNotLoopMode is returned when Start is called on a PUMP iterator
	ErrNotLoopMode = errors.New("iterator is not in LOOP mode")

	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("iterator already started")

	// ErrNotStarted is returned when Stop is called on an iterator that is not running
	ErrNotStarted = errors.New("iterator not started")

	// ErrRoleGateNil is returned when a factory is built without a role gate
	ErrRoleGateNil = errors.New("role gate cannot be nil")

	// ErrInvalidPoolOptions is returned for a dedicated pool without name, size or interval
	ErrInvalidPoolOptions = errors.New("pool options need a name, a positive size and a positive interval")
)
