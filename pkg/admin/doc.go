// Package admin serves the operational HTTP surface of the iterator daemon: liveness and
// readiness probes, Prometheus metrics, the iterator registry snapshot, cluster-wide wakeups
// and the maintenance switch.
//
// Routes are mounted on a chi router and only exist for the dependencies provided:
//
//	h := admin.NewRouter(admin.Deps{
//	    Logger:      log,
//	    Gatherer:    prometheus.DefaultGatherer,
//	    Checks:      []admin.Check{mongo.Healthcheck(client)},
//	    Iterators:   registry,
//	    Wakeups:     redisWakeups,
//	    Maintenance: maintenanceSync,
//	})
//	srv := admin.NewServer(cfg, admin.WithServerLogger(log))
//	if err := srv.Run(ctx, h); err != nil {
//	    log.Error("admin server", logger.Error(err))
//	}
//
// Server blocks until its context is done and then shuts down gracefully within
// Config.ShutdownTimeout.
package admin
