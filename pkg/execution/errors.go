package execution

import "errors"

var (
	// ErrConfigParse is returned when a configuration snapshot cannot be decoded or validated.
	// The previously applied snapshot stays in effect.
	ErrConfigParse = errors.New("failed to parse iterator configuration")

	// ErrInvalidConfig is returned when a single iterator record is inconsistent
	ErrInvalidConfig = errors.New("invalid iterator configuration")

	// ErrIteratorNotRegistered is returned when a record names an iterator nobody registered
	ErrIteratorNotRegistered = errors.New("iterator not registered")

	// ErrAlreadyRegistered is returned when a name is registered twice
	ErrAlreadyRegistered = errors.New("iterator already registered")

	// ErrNameRequired is returned when an iterator is registered without a name
	ErrNameRequired = errors.New("iterator name is required")

	// ErrLauncherNil is returned when an iterator is registered without a launcher
	ErrLauncherNil = errors.New("launcher cannot be nil")

	// ErrFactoryNil is returned when an iterator launcher has no factory
	ErrFactoryNil = errors.New("iterator factory cannot be nil")

	// ErrRoleInactive is returned by launchers when this process does not run the iterator's entity type
	ErrRoleInactive = errors.New("role inactive for this process")

	// ErrRegistryClosed is returned after Shutdown
	ErrRegistryClosed = errors.New("registry is shut down")

	// ErrInvalidTransition is returned when a lifecycle event is not allowed in the current state
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrPathRequired is returned when a watcher is created without a file path
	ErrPathRequired = errors.New("configuration file path is required")

	// ErrApplierNil is returned when a watcher is created without a target
	ErrApplierNil = errors.New("applier cannot be nil")
)
