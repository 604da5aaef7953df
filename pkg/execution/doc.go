// Package execution is the control plane of the iterators of one process.
//
// Iterators are registered by name with a Launcher and start in state INIT. The initial
// configuration snapshot is applied with StartIterators; afterwards every change goes through
// ApplyConfiguration, one record at a time:
//
//	RUNNING      + disabled record  -> executor shut down, NOT_RUNNING
//	NOT_RUNNING  + enabled record   -> started, RUNNING
//	RUNNING      + changed record   -> restarted with the new pool, interval or mode, RUNNING
//	any state    + unchanged record -> no-op
//
// Unknown names are logged and ignored. Each start opens a new generation whose context is
// cancelled when the generation is retired, so work spawned by a stopped iterator cannot
// bring it back.
//
// Records come from a YAML (or JSON) file:
//
//	iterators:
//	  - name: probe-regular
//	    enabled: true
//	    threadPoolSize: 4
//	    threadPoolIntervalInSeconds: 10
//	    nextIterationMode: TARGET
//	    targetIntervalInSeconds: 60
//	    iteratorMode: PUMP
//
// Watcher follows that file with fsnotify and applies every accepted snapshot. A malformed
// snapshot is rejected as a whole and the previous one stays in effect.
//
// Usage:
//
//	reg := execution.NewRegistry(execution.WithRegistryLogger(log))
//	reg.Register("probe-regular", execution.IteratorLauncher(factory, "probe", builder, hub))
//
//	w, _ := execution.NewWatcher(path, reg)
//	records, err := w.Load()
//	if err != nil {
//	    return err
//	}
//	_ = reg.StartIterators(ctx, records)
//	go w.Watch(ctx)
//	defer reg.Shutdown()
package execution
