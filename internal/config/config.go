// Package config loads postgate settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process-wide settings. CLI flags override these values.
type Config struct {
	DBPath     string        `env:"POSTGATE_DB_PATH" envDefault:"postgate.db"`
	ListenAddr string        `env:"POSTGATE_ADDR" envDefault:":8080"`
	JWTSecret  string        `env:"POSTGATE_JWT_SECRET"`
	TokenTTL   time.Duration `env:"POSTGATE_TOKEN_TTL" envDefault:"24h"`
	LogJSON    bool          `env:"POSTGATE_LOG_JSON"`
	DryRun     bool          `env:"POSTGATE_DRY_RUN" envDefault:"true"`

	Workers      int           `env:"POSTGATE_WORKERS" envDefault:"2"`
	QueueBuffer  int           `env:"POSTGATE_QUEUE_BUFFER" envDefault:"64"`
	PublishRate  float64       `env:"POSTGATE_PUBLISH_RATE" envDefault:"1"`
	PublishBurst int           `env:"POSTGATE_PUBLISH_BURST" envDefault:"1"`
	MaxAttempts  int           `env:"POSTGATE_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay   time.Duration `env:"POSTGATE_RETRY_DELAY" envDefault:"500ms"`
}

// Load reads an optional .env file and then parses the environment.
func Load(dotenv ...string) (Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("POSTGATE_WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("POSTGATE_MAX_ATTEMPTS must be positive, got %d", cfg.MaxAttempts)
	}
	return cfg, nil
}
