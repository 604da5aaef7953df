// Package config loads process configuration from the environment.
//
// Structs describe their variables with caarlos0/env tags; Load fills them, reading ./.env
// through godotenv on first use. Each configuration type is parsed once and cached, so packages
// can call Load for the same struct without re-reading the environment. WithPrefix lets one
// struct be loaded several times under different variable prefixes.
//
//	type Config struct {
//		Roles      []string `env:"ITERATOR_ROLES" envSeparator:"," envDefault:"*"`
//		ConfigFile string   `env:"ITERATOR_CONFIG_FILE" envDefault:"iterators.yaml"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Tests call ResetCache after changing the environment.
package config
