// Package redis connects the iterator daemon to Redis.
//
// Redis carries two cluster-wide signals: the maintenance flag, mirrored into every process by
// iterator.MaintenanceSync, and the wakeup channel used by iterator.RedisWakeups. Config is read
// from REDIS_* environment variables and also names the key and channel for those signals.
//
//	client, err := redis.Connect(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	sync := iterator.NewMaintenanceSync(client, cfg.MaintenanceKey, cfg.MaintenancePoll, m, log)
//	go sync.Run(ctx)
//
// Healthcheck adapts a client to the probes served on /healthz.
package redis
