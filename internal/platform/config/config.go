// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings for the Inkhaven server.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"INKHAVEN_ADDR" envDefault:":8080"`
	// DatabasePath is the SQLite database file path.
	DatabasePath string `env:"INKHAVEN_DB_PATH" envDefault:"inkhaven.db"`
	// WriteWindow is the duration of the Write phase before auto-pass applies.
	WriteWindow time.Duration `env:"INKHAVEN_WRITE_WINDOW" envDefault:"72h"`
	// ComposeLockTTL is the compose lock lease duration from last activity.
	ComposeLockTTL time.Duration `env:"INKHAVEN_COMPOSE_LOCK_TTL" envDefault:"10m"`
	// JWTSecret signs and verifies API bearer tokens.
	JWTSecret string `env:"INKHAVEN_JWT_SECRET,required"`
	// RedisURL enables the cross-process notification publisher when set.
	RedisURL string `env:"INKHAVEN_REDIS_URL"`
	// OTELEndpoint enables trace export when set.
	OTELEndpoint string `env:"INKHAVEN_OTEL_ENDPOINT"`
	// LogLevel selects the zerolog level (debug, info, warn, error).
	LogLevel string `env:"INKHAVEN_LOG_LEVEL" envDefault:"info"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
