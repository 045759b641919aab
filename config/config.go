// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Debug bool   `env:"DEBUG" env-default:"false"`
	Port  string `env:"PORT" env-default:"8080"`

	Storage StorageConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Jobs    JobsConfig
}

// StorageConfig covers both backends: the Azure tables and queue used for
// authenticated owners and the on-disk fallback used for anonymous sessions.
type StorageConfig struct {
	ConnectionString string `env:"STORAGE_CONNECTION_STRING" env-default:""`
	TasksTable       string `env:"TASKS_TABLE" env-default:"tasks"`
	DigestsTable     string `env:"DIGESTS_TABLE" env-default:"digests"`
	ReminderQueue    string `env:"REMINDER_QUEUE" env-default:"reminders"`
	DataDir          string `env:"DATA_DIR" env-default:"data"`
}

type RedisConfig struct {
	// ConnectionString accepts a redis:// URL or the comma-separated
	// host:port,password=...,ssl=true form. Empty disables the cache,
	// deduper and cross-instance relay.
	ConnectionString string        `env:"REDIS_CONNECTION_STRING" env-default:""`
	CacheTTL         time.Duration `env:"CACHE_TTL" env-default:"30s"`
	DeduperTTL       time.Duration `env:"DEDUPER_TTL" env-default:"24h"`
	StatusChannel    string        `env:"STATUS_CHANNEL" env-default:"task-status"`
}

type AuthConfig struct {
	Audience   string `env:"AUTH0_AUDIENCE" env-default:""`
	Domain     string `env:"AUTH0_DOMAIN" env-default:""`
	TestMode   bool   `env:"AUTH0_TEST_MODE" env-default:"false"`
	TestSecret string `env:"AUTH_TEST_SECRET" env-default:""`
}

type JobsConfig struct {
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" env-default:"1h"`
	FeedInterval  time.Duration `env:"FEED_INTERVAL" env-default:"30s"`
}

// JWKSURL is the Auth0 key set endpoint derived from the configured domain.
func (a AuthConfig) JWKSURL() string {
	return fmt.Sprintf("https://%s/.well-known/jwks.json", a.Domain)
}

// Issuer is the expected token issuer derived from the configured domain.
func (a AuthConfig) Issuer() string {
	return "https://" + a.Domain + "/"
}

func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if !cfg.Auth.TestMode && cfg.Storage.ConnectionString != "" {
		if cfg.Auth.Audience == "" || cfg.Auth.Domain == "" {
			return Config{}, fmt.Errorf("AUTH0_AUDIENCE and AUTH0_DOMAIN are required when remote storage is configured")
		}
	}
	if cfg.Auth.TestMode && cfg.Auth.TestSecret == "" {
		return Config{}, fmt.Errorf("AUTH_TEST_SECRET is required in test mode")
	}
	if cfg.Jobs.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}
