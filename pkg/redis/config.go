package redis

import "time"

// Config describes the Redis server used for the maintenance flag and wakeup fan-out.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"` // ConnectionURL has the form "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`                      // RetryAttempts is the number of connection attempts at startup.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`                     // RetryInterval is the pause between connection attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`                   // ConnectTimeout bounds all attempts together.

	MaintenanceKey  string        `env:"REDIS_MAINTENANCE_KEY" envDefault:"iterator:maintenance"` // MaintenanceKey holds the cluster-wide pause flag.
	MaintenancePoll time.Duration `env:"REDIS_MAINTENANCE_POLL" envDefault:"5s"`                  // MaintenancePoll is how often the flag is read.
	WakeupChannel   string        `env:"REDIS_WAKEUP_CHANNEL" envDefault:"iterator:wakeup"`       // WakeupChannel carries iterator names to wake.
}
