// Package logger builds the structured loggers used by iterator hosts.
//
// It wraps log/slog with a single factory, New, configured through functional options:
//
//   - output format (text or json) and minimum level
//   - static attributes attached to every record (service, environment)
//   - ContextExtractor callbacks that copy values stored in a context.Context into each record
//
// Iterator code stores the iterator name and the entity id in the context before invoking a
// handler (WithIterator, WithEntityID), so every line a handler logs through the context-aware
// slog methods carries both without the handler knowing about the engine.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Environment, "iteratord"),
//	    logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
//	    logger.WithIteratorContext(),
//	)
//	logger.SetAsDefault(log)
//
//	log.Warn("execution exceeded acceptable time",
//	    logger.Iterator("probe-regular"),
//	    logger.EntityID(id),
//	    logger.Duration(elapsed),
//	)
//
// Helper constructors in attr.go keep attribute keys consistent across packages.
package logger
