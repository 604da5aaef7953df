package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/admin"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/config"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/mongo"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

const probeCollection = "probes"

// backend is the selected probe store with everything the daemon needs around it.
type backend struct {
	store  iterator.Store[*Probe]
	fields probeFields
	check  admin.Check
	seed   func(ctx context.Context, probes []*Probe) (int, error)
	close  func()
}

func openBackend(ctx context.Context, kind string, log *slog.Logger) (*backend, error) {
	switch kind {
	case backendMongo:
		return openMongo(ctx, log)
	case backendPostgres:
		return openPostgres(ctx, log)
	case backendMemory:
		store := iterator.NewMemoryStore[*Probe]()
		return &backend{
			store:  store,
			fields: documentFields,
			seed: func(_ context.Context, probes []*Probe) (int, error) {
				for _, p := range probes {
					store.Save(p)
				}
				return len(probes), nil
			},
			close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", kind)
}

func openMongo(ctx context.Context, log *slog.Logger) (*backend, error) {
	var cfg mongo.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	db, err := mongo.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	client := db.Client()
	closeClient := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Warn("mongodb disconnect failed", logger.Error(err))
		}
	}

	coll := db.Collection(probeCollection)
	store, err := iterator.NewMongoStore[*Probe](coll)
	if err != nil {
		closeClient()
		return nil, err
	}
	fields := documentFields
	if err := store.EnsureIndexes(ctx, fields.Regular, fields.Cron, fields.Backoff); err != nil {
		closeClient()
		return nil, err
	}

	return &backend{
		store:  store,
		fields: fields,
		check:  mongo.Healthcheck(client),
		seed: func(ctx context.Context, probes []*Probe) (int, error) {
			inserted := 0
			for _, p := range probes {
				if _, err := coll.InsertOne(ctx, p); err != nil {
					if mongodriver.IsDuplicateKeyError(err) {
						continue
					}
					return inserted, fmt.Errorf("insert probe %s: %w", p.ID, err)
				}
				inserted++
			}
			return inserted, nil
		},
		close: closeClient,
	}, nil
}

func openPostgres(ctx context.Context, log *slog.Logger) (*backend, error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, pool, migrations, cfg, log); err != nil {
		pool.Close()
		return nil, err
	}
	store, err := iterator.NewPostgresStore[*Probe](pool, probeCollection, pgx.RowToAddrOfStructByName[Probe])
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &backend{
		store:  store,
		fields: columnFields,
		check:  pg.Healthcheck(pool),
		seed: func(ctx context.Context, probes []*Probe) (int, error) {
			inserted := 0
			for _, p := range probes {
				_, err := pool.Exec(ctx,
					`INSERT INTO probes (id, target, schedule, next_cron_runs, next_backoff_runs, created_at)
					 VALUES (@id, @target, @schedule, @cron, @backoff, @created)`,
					pgx.NamedArgs{
						"id":       p.ID,
						"target":   p.Target,
						"schedule": p.Schedule,
						"cron":     p.NextCronRuns,
						"backoff":  p.NextBackoffRuns,
						"created":  p.CreatedAt,
					})
				if err != nil {
					if pg.IsDuplicateKeyError(err) {
						continue
					}
					return inserted, fmt.Errorf("insert probe %s: %w", p.ID, err)
				}
				inserted++
			}
			return inserted, nil
		},
		close: pool.Close,
	}, nil
}
