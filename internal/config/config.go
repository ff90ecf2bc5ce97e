// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Supported source kinds.
const (
	SourceFake     = "fake"
	SourcePostgres = "postgres"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Target dataset and credential
	AuthToken    string `env:"REINFER_AUTH_TOKEN,required"`
	DatasetOwner string `env:"REINFER_DATASET_OWNER,required"`
	DatasetName  string `env:"REINFER_DATASET_NAME,required"`

	// Source name stored with each comment, e.g. "Zendesk" (optional)
	SourceName string `env:"REINFER_SOURCE_NAME"`

	// API endpoint override, e.g. for a staging environment
	APIBaseURL string `env:"REINFER_API_URL" envDefault:"https://reinfer.io"`

	// Data source selection
	SourceKind  string `env:"SOURCE" envDefault:"fake"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Optional Redis checkpoint store
	RedisURL string `env:"REDIS_URL"`

	// Poll loop tuning
	PollInterval           time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	Lookback               time.Duration `env:"LOOKBACK_WINDOW" envDefault:"10s"`
	PageSize               int           `env:"PAGE_SIZE" envDefault:"40"`
	MaxConsecutiveFailures int           `env:"MAX_CONSECUTIVE_FAILURES" envDefault:"5"`

	// Disable retry of transient API failures
	RetryDisabled bool `env:"RETRY_DISABLED" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Ops HTTP sidecar
	OpsEnabled bool `env:"OPS_ENABLED" envDefault:"true"`
	OpsPort    int  `env:"OPS_PORT" envDefault:"8081"`
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.SourceKind {
	case SourceFake:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when SOURCE=postgres")
		}
	default:
		return fmt.Errorf("unknown SOURCE %q (want %q or %q)", c.SourceKind, SourceFake, SourcePostgres)
	}

	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.PageSize <= 0 {
		return errors.New("PAGE_SIZE must be positive")
	}
	return nil
}
