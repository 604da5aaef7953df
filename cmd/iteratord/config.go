package main

import (
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/admin"
)

// Store backends.
const (
	backendMongo    = "mongo"
	backendPostgres = "postgres"
	backendMemory   = "memory"
)

// Wakeup transports.
const (
	wakeupsRedis = "redis"
	wakeupsNATS  = "nats"
	wakeupsLocal = "local"
)

// Config is the daemon's own environment. Backend connection settings are loaded on demand so
// only the selected backends need their variables set.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	// Roles are the entity types this process runs iterators for; "*" runs all of them.
	Roles []string `env:"ITERATOR_ROLES" envSeparator:"," envDefault:"*"`
	// RoleEnvironments restricts the roles to the listed environments when set.
	RoleEnvironments []string `env:"ITERATOR_ROLE_ENVIRONMENTS" envSeparator:","`

	ConfigFile     string `env:"ITERATOR_CONFIG_FILE" envDefault:"iterators.yaml"`
	Store          string `env:"ITERATOR_STORE" envDefault:"mongo"`
	Wakeups        string `env:"ITERATOR_WAKEUPS" envDefault:"redis"`
	Redis          bool   `env:"ITERATOR_REDIS" envDefault:"true"`
	SharedPoolSize int    `env:"ITERATOR_SHARED_POOL_SIZE" envDefault:"32"`

	ProbeTargets  []string `env:"PROBE_TARGETS" envSeparator:"," envDefault:"https://example.com"`
	ProbeSchedule string   `env:"PROBE_SCHEDULE" envDefault:"0 */5 * * * *"`

	Admin admin.Config
}
