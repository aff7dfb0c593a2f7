// Package config loads service configuration from a TOML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backend modes.
const (
	StoreModeRemote = "remote"
	StoreModeLocal  = "local"
)

// Config is the full service configuration.
type Config struct {
	HTTPPort string `mapstructure:"http_port"`

	// Store selects which backend the planner talks to.
	Store StoreConfig `mapstructure:"store"`
}

// StoreConfig configures the record-store backend.
type StoreConfig struct {
	Mode string `mapstructure:"mode"` // "remote" or "local"

	// Remote backend
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Local backend
	DSN string `mapstructure:"dsn"`
}

// Load reads configuration from the given file (optional) and the
// LOADPLAN_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("http_port", "5000")
	v.SetDefault("store.mode", StoreModeRemote)
	v.SetDefault("store.request_timeout", 30*time.Second)
	v.SetDefault("store.dsn", "loadplan.db")
	// Empty defaults keep these keys visible to AutomaticEnv when no
	// config file sets them.
	v.SetDefault("store.base_url", "")
	v.SetDefault("store.token", "")

	v.SetEnvPrefix("LOADPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Mode {
	case StoreModeRemote:
		if c.Store.BaseURL == "" {
			return fmt.Errorf("store.base_url is required in remote mode")
		}
	case StoreModeLocal:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required in local mode")
		}
	default:
		return fmt.Errorf("unknown store mode %q", c.Store.Mode)
	}
	if c.HTTPPort == "" {
		return fmt.Errorf("http_port is required")
	}
	return nil
}
