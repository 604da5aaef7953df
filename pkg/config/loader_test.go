package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/config"
)

type poolConfig struct {
	Size     int           `env:"TEST_CFG_POOL_SIZE" envDefault:"4"`
	Interval time.Duration `env:"TEST_CFG_POOL_INTERVAL" envDefault:"10s"`
}

type requiredConfig struct {
	URL string `env:"TEST_CFG_REQUIRED_URL,required"`
}

type fileConfig struct {
	Value string   `env:"TEST_CFG_FILE_VALUE"`
	List  []string `env:"TEST_CFG_FILE_LIST" envSeparator:","`
}

type prefixedConfig struct {
	Name string `env:"NAME"`
}

// Tests in this file mutate the process environment and the shared cache, so they do not run
// in parallel.

func TestLoad(t *testing.T) {
	t.Run("defaults and overrides", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TEST_CFG_POOL_SIZE", "16")

		var cfg poolConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 16, cfg.Size)
		assert.Equal(t, 10*time.Second, cfg.Interval)
	})

	t.Run("values are cached per type", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TEST_CFG_POOL_SIZE", "2")

		var first poolConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("TEST_CFG_POOL_SIZE", "3")
		var second poolConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, 2, second.Size)

		config.ResetCache()
		require.NoError(t, config.Load(&second))
		assert.Equal(t, 3, second.Size)
	})

	t.Run("missing required variable", func(t *testing.T) {
		config.ResetCache()

		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[poolConfig](nil), config.ErrNilPointer)
	})

	t.Run("prefixes are cached separately", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("A_NAME", "alpha")
		t.Setenv("B_NAME", "beta")

		var a, b prefixedConfig
		require.NoError(t, config.Load(&a, config.WithPrefix("A_")))
		require.NoError(t, config.Load(&b, config.WithPrefix("B_")))
		assert.Equal(t, "alpha", a.Name)
		assert.Equal(t, "beta", b.Name)
	})
}

func TestLoadEnv(t *testing.T) {
	config.ResetCache()

	require.NoError(t, config.LoadEnv("testdata/.env.test"))

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, []string{"a", "b", "c"}, cfg.List)

	err := config.LoadEnv("testdata/missing.env")
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
}
