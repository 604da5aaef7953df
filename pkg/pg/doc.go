// Package pg connects the iterator daemon to PostgreSQL through pgx/v5.
//
// Config is read from PG_* environment variables. Connect opens a pgxpool.Pool with retries,
// Migrate applies goose migrations from an fs.FS (usually embedded in the binary), and
// Healthcheck adapts the pool to the probes served on /healthz. IsDuplicateKeyError classifies
// unique violations returned by inserts.
//
//	pool, err := pg.Connect(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations, cfg, log); err != nil {
//		return err
//	}
//	store, err := iterator.NewPostgresStore(pool, "probes", pgx.RowToAddrOfStructByName[Probe])
package pg
