// Package config loads service configuration from file and environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig selects and configures the event store backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "memory" or "sqlite"
	Path   string `mapstructure:"path"`   // sqlite database path
}

// EngineConfig holds the ledger and payout engine parameters.
type EngineConfig struct {
	// OwnerAccountID is the contract-owner account: it receives service
	// fees and is the only caller allowed to use the admin operations.
	OwnerAccountID string `mapstructure:"owner_account_id"`

	// CloseRequiresDistributed tightens the close_event guard: when true,
	// events may only be closed after full distribution; when false,
	// closing is legal from Calculated onward.
	CloseRequiresDistributed bool `mapstructure:"close_requires_distributed"`

	// WhitelistedTokens are the reward token ids accepted at event
	// creation, in addition to the native token (null token id).
	WhitelistedTokens []string `mapstructure:"whitelisted_tokens"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// Load reads configuration from path (optional) and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GIVEAWAY")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "./data/giveaway.db")

	v.SetDefault("engine.owner_account_id", "giveaway.owner")
	v.SetDefault("engine.close_requires_distributed", false)

	v.SetDefault("logging.verbose", false)
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver must be one of: memory, sqlite")
	}
	if c.Engine.OwnerAccountID == "" {
		return fmt.Errorf("engine.owner_account_id is required")
	}
	return nil
}
