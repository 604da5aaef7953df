package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// Connect dials NATS, retrying up to cfg.RetryAttempts times. Once connected the client
// reconnects on its own and the transitions are logged.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*nats.Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("nats"))

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	}

	var lastErr error
	for attempt := range cfg.RetryAttempts {
		conn, err := nats.Connect(cfg.URL, opts...)
		if err == nil {
			log.Info("connected to nats", slog.String("url", conn.ConnectedUrl()))
			return conn, nil
		}
		lastErr = err
		log.Warn(fmt.Sprintf("nats connection attempt %d of %d failed", attempt+1, cfg.RetryAttempts), logger.Error(err))

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToConnect, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

// Healthcheck returns a probe reporting whether the connection is up.
func Healthcheck(conn *nats.Conn) func(context.Context) error {
	return func(context.Context) error {
		if status := conn.Status(); status != nats.CONNECTED {
			return errors.Join(ErrHealthcheckFailed, fmt.Errorf("connection status %s", status))
		}
		return nil
	}
}
