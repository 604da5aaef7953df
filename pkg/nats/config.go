package nats

import "time"

// Config describes the NATS server used for the wakeup fan-out.
type Config struct {
	URL           string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`      // URL of the server, comma separated for a cluster.
	Name          string        `env:"NATS_CLIENT_NAME" envDefault:"iteratord"`         // Name identifies the connection in server monitoring.
	WakeupSubject string        `env:"NATS_WAKEUP_SUBJECT" envDefault:"iterator.wakeup"` // WakeupSubject carries iterator names to wake.
	RetryAttempts int           `env:"NATS_RETRY_ATTEMPTS" envDefault:"5"`               // RetryAttempts is the number of connection attempts at startup.
	RetryInterval time.Duration `env:"NATS_RETRY_INTERVAL" envDefault:"2s"`              // RetryInterval is the pause between connection attempts.
	MaxReconnects int           `env:"NATS_MAX_RECONNECTS" envDefault:"-1"`              // MaxReconnects after the connection is lost; -1 retries forever.
}
