// Package feature decides which roles a process is responsible for.
//
// A role is a named flag, usually an entity type. Flags live in a Provider; MemoryProvider is
// filled from process configuration with FromRoles. A flag may carry a Strategy that refines it
// per context, for example EnvironmentStrategy which only passes in listed deployment
// environments, or the And/Or composites.
//
// Gate adapts a Provider to the check the iterator factory performs before creating iterators:
// an unknown role is simply inactive.
//
//	provider, err := feature.FromRoles(nil, "probe", "invoice")
//	if err != nil {
//		return err
//	}
//	gate, _ := feature.NewGate(provider)
//	factory, err := iterator.NewFactory(gate)
package feature
