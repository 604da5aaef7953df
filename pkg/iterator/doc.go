// Package iterator runs handlers on persisted entities whose schedule has come due.
//
// An entity carries its own schedule in a field: a single timestamp for REGULAR iterators, or an
// ascending list of timestamps for IRREGULAR and IRREGULAR_SKIP_MISSED iterators. Each pass of an
// iterator reads the due candidates, claims them one by one with an atomic conditional update
// and submits the claimed ones to an executor. Many processes may run the same iterator against
// the same store; the claim makes sure every due occurrence is handled by exactly one of them.
//
// # Run modes
//
// PUMP iterators are driven from outside, either by calling Process or through Run, which fires
// a non-overlapping pass at a fixed interval. LOOP iterators own a goroutine that sleeps until the
// earliest due entity, a Wakeup call, a maintenance toggle or MaximumDelayForCheck.
//
// # Stores
//
// MemoryStore, MongoStore and PostgresStore implement Store. A store must make Claim atomic per
// entity; everything else is plain reads and conditional writes.
//
// # Usage
//
//	store, _ := iterator.NewMongoStore[*Probe](db.Collection("probes"))
//	it, err := iterator.New("probe-regular", "nextRun", store,
//	    iterator.HandlerFunc[*Probe](checkProbe),
//	    iterator.WithTargetInterval(time.Minute),
//	    iterator.WithProcessMode(iterator.Loop),
//	)
//	if err != nil {
//	    return err
//	}
//	runner, err := iterator.Run(ctx, it, nil)
//	if err != nil {
//	    return err
//	}
//	defer runner.Shutdown()
//
// Factory wraps the same steps behind a role gate, so a process only runs the iterators of
// entity types it is responsible for, and can give a PUMP iterator a dedicated pool whose
// utilization is exported to Prometheus.
package iterator
