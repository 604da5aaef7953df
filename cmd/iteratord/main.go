// Command iteratord runs the probe iterators described by a watched configuration file.
//
// The store backend, wakeup transport and roles are chosen through the environment; see Config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/admin"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/config"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/execution"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/feature"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/nats"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("iteratord failed", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	_ = config.LoadEnv()

	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	switch cfg.Wakeups {
	case wakeupsRedis, wakeupsNATS, wakeupsLocal:
	default:
		return fmt.Errorf("unknown wakeup transport %q", cfg.Wakeups)
	}

	opts := []logger.Option{
		logger.WithEnvironment(cfg.Environment, "iteratord"),
		logger.WithIteratorContext(),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := iterator.GetMetrics()
	maintenance := iterator.NewMaintenance()
	hub := iterator.NewWakeupHub(log)

	db, err := openBackend(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer db.close()

	g, gctx := errgroup.WithContext(ctx)

	var (
		checks    []admin.Check
		publisher admin.Publisher
		pause     admin.Maintenance
		listen    func(context.Context) error
	)
	publisher, pause = hub, admin.LocalMaintenance(maintenance)
	if db.check != nil {
		checks = append(checks, db.check)
	}

	if cfg.Redis {
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, rcfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		checks = append(checks, redis.Healthcheck(client))

		msync := iterator.NewMaintenanceSync(client, rcfg.MaintenanceKey, rcfg.MaintenancePoll, maintenance, log)
		pause = msync
		g.Go(func() error {
			msync.Run(gctx)
			return nil
		})

		if cfg.Wakeups == wakeupsRedis {
			rw, err := iterator.NewRedisWakeups(client, rcfg.WakeupChannel, hub)
			if err != nil {
				return err
			}
			publisher, listen = rw, rw.Listen
		}
	}

	if cfg.Wakeups == wakeupsNATS {
		var ncfg nats.Config
		if err := config.Load(&ncfg); err != nil {
			return err
		}
		conn, err := nats.Connect(ctx, ncfg, log)
		if err != nil {
			return err
		}
		defer conn.Close()
		checks = append(checks, nats.Healthcheck(conn))

		nw, err := iterator.NewNATSWakeups(conn, ncfg.WakeupSubject, hub)
		if err != nil {
			return err
		}
		publisher, listen = nw, nw.Listen
	}
	if cfg.Wakeups == wakeupsRedis && listen == nil {
		log.Warn("redis wakeups need ITERATOR_REDIS, falling back to local")
	}

	if listen != nil {
		g.Go(func() error {
			if err := listen(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("wakeup listener: %w", err)
			}
			return nil
		})
	}

	var strategy feature.Strategy
	if len(cfg.RoleEnvironments) > 0 {
		strategy = feature.NewEnvironmentStrategy(cfg.RoleEnvironments)
	}
	roles, err := feature.FromRoles(strategy, cfg.Roles...)
	if err != nil {
		return err
	}
	gate, err := feature.NewGate(roles)
	if err != nil {
		return err
	}

	shared, err := iterator.NewPool("iterator-shared", cfg.SharedPoolSize, log)
	if err != nil {
		return err
	}
	defer shared.Release()

	factory, err := iterator.NewFactory(gate,
		iterator.WithSharedExecutor(shared),
		iterator.WithFactoryLogger(log),
		iterator.WithFactoryMetrics(metrics),
		iterator.WithFactoryMaintenance(maintenance),
	)
	if err != nil {
		return err
	}

	registry := execution.NewRegistry(
		execution.WithRegistryLogger(log),
		execution.WithRegistryContext(feature.WithEnvironment(ctx, cfg.Environment)),
	)
	if err := registerProbes(registry, factory, hub, db.store, db.fields, newProber(log)); err != nil {
		return err
	}

	seeds := make([]*Probe, 0, len(cfg.ProbeTargets))
	now := time.Now()
	for _, target := range cfg.ProbeTargets {
		p := NewProbe(target, cfg.ProbeSchedule)
		p.schedule(db.fields, now)
		seeds = append(seeds, p)
	}
	if n, err := db.seed(ctx, seeds); err != nil {
		log.Warn("probe seeding incomplete", logger.Error(err), slog.Int("inserted", n))
	} else if n > 0 {
		log.Info("probes seeded", slog.Int("inserted", n))
	}

	watcher, err := execution.NewWatcher(cfg.ConfigFile, registry, execution.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	records, err := watcher.Load()
	if err != nil {
		log.Warn("iterator configuration unavailable, starting nothing", logger.Error(err))
		records = nil
	}
	if err := registry.StartIterators(ctx, records); err != nil {
		log.Error("some iterators failed to start", logger.Error(err))
	}

	g.Go(func() error { return watcher.Watch(gctx) })

	server := admin.NewServer(cfg.Admin, admin.WithServerLogger(log))
	router := admin.NewRouter(admin.Deps{
		Logger:      log,
		Gatherer:    prometheus.DefaultGatherer,
		Checks:      checks,
		Iterators:   registry,
		Wakeups:     publisher,
		Maintenance: pause,
	})
	g.Go(func() error { return server.Run(gctx, router) })

	log.Info("iteratord started",
		slog.String("store", cfg.Store),
		slog.String("wakeups", cfg.Wakeups),
		slog.Any("roles", cfg.Roles))

	runErr := g.Wait()

	shutdownErr := errors.Join(registry.Shutdown(), factory.Shutdown())
	if shutdownErr != nil {
		log.Error("shutdown finished with errors", logger.Error(shutdownErr))
	}
	log.Info("iteratord stopped")
	return runErr
}
