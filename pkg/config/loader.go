package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache holds one parsed value per configuration type and prefix. Parsing the environment is
// only done once per key; later loads copy the cached value.
var cache = struct {
	sync.Mutex
	values map[string]any
}{values: make(map[string]any)}

var dotenvOnce sync.Once

type options struct {
	prefix string
}

// Option tunes a single Load call
type Option func(*options)

// WithPrefix prepends prefix to every env tag of the struct, e.g. "PROBE_" turns MONGODB_URL
// into PROBE_MONGODB_URL. Values loaded with different prefixes are cached separately.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// LoadEnv reads the given .env files into the process environment without overriding variables
// that are already set. Without arguments it reads ./.env.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Load parses the environment into v according to its env tags. The default .env file is read
// on first use if present.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	key := cacheKey[T](o.prefix)

	cache.Lock()
	defer cache.Unlock()

	if cached, ok := cache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.ParseWithOptions(&parsed, env.Options{Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// ResetCache forgets every loaded configuration, so the next Load parses the environment again.
func ResetCache() {
	cache.Lock()
	defer cache.Unlock()
	clear(cache.values)
}

func cacheKey[T any](prefix string) string {
	return prefix + "|" + reflect.TypeFor[T]().String()
}
