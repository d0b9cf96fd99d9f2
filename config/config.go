// Package config loads runtime settings from the environment.
// File: config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Env             string `env:"APP_ENV" envDefault:"development"`
	Port            int    `env:"PORT" envDefault:"8080"`
	ApplicationURL  string `env:"APPLICATION_URL" envDefault:"http://localhost:8080"`
	WebsocketURL    string `env:"WEBSOCKET_URL" envDefault:"ws://localhost:8080/live/ws"`
	SessionSecret   string `env:"SESSION_SECRET" envDefault:"change-me"`
	CredentialsFile string `env:"CREDENTIALS_FILE" envDefault:"config/officials.json"`
	LogDir          string `env:"LOG_DIR"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"file:lift-control.db?_pragma=busy_timeout(5000)"`

	AttemptLease  time.Duration `env:"ATTEMPT_LEASE" envDefault:"3m"`
	SweepSchedule string        `env:"LOCK_SWEEP_SCHEDULE" envDefault:"@every 15s"`
	TimerTick     time.Duration `env:"TIMER_TICK" envDefault:"1s"`

	AWSRegion        string `env:"AWS_REGION" envDefault:"ap-southeast-2"`
	CloudWatch       bool   `env:"CLOUDWATCH_ENABLED" envDefault:"false"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"LiftControl"`
	XRay             bool   `env:"XRAY_ENABLED" envDefault:"false"`
	XRaySegment      string `env:"XRAY_SEGMENT" envDefault:"lift-control"`
	ArchiveBucket    string `env:"ARCHIVE_BUCKET"`
	ArchivePrefix    string `env:"ARCHIVE_PREFIX" envDefault:"sessions/"`
}

// Production reports whether the server runs in production mode.
func (c Config) Production() bool {
	return c.Env == "production"
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.AttemptLease <= 0 {
		return errors.New("ATTEMPT_LEASE must be positive")
	}
	if c.TimerTick <= 0 {
		return errors.New("TIMER_TICK must be positive")
	}
	return nil
}
