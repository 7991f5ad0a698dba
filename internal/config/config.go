package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the worker configuration, read from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Google OAuth (mailbox access)
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	// AI extraction
	AIEndpoint    string        `env:"AI_ENDPOINT"`
	AIAPIKey      string        `env:"AI_API_KEY"`
	AIModel       string        `env:"AI_MODEL" envDefault:"openai/gpt-4o-mini"`
	AITimeout     time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
	AIConcurrency int           `env:"AI_CONCURRENCY" envDefault:"3"`

	// Sync
	SyncBatchSize   int           `env:"SYNC_BATCH_SIZE" envDefault:"50"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment, layering a .env file if one
// is present.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		fmt.Println("Warning: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, token refresh will not work")
	}
	if cfg.AIAPIKey == "" {
		fmt.Println("Warning: AI_API_KEY not set, extraction falls back to pattern results only")
	}

	return cfg, nil
}
