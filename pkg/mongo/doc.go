// Package mongo connects the iterator daemon to MongoDB.
//
// Configuration comes from MONGODB_* environment variables through Config. New retries the
// connection at startup, Open additionally selects the database holding entity collections,
// and Healthcheck adapts a client to the func(context.Context) error probes served on /healthz.
//
// # Usage
//
//	var cfg mongo.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	db, err := mongo.Open(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	store, err := iterator.NewMongoStore[*Probe](db.Collection("probes"))
package mongo
