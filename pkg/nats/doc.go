// Package nats connects the iterator daemon to NATS, the alternative transport for the
// cluster-wide wakeup fan-out implemented by iterator.NATSWakeups.
//
//	conn, err := nats.Connect(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	defer conn.Drain()
package nats
