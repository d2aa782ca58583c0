package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config holds all engine tunables. Values come from the environment;
// a missing required value is fatal at startup and never retried.
type Config struct {
	AIProvider  string `env:"AI_PROVIDER" envDefault:"pollinations"`
	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	// Proactive path
	ScanInterval  time.Duration `env:"SCAN_INTERVAL" envDefault:"30m"`
	StartupDelay  time.Duration `env:"STARTUP_DELAY" envDefault:"15s"`
	BatchSize     int           `env:"SCAN_BATCH_SIZE" envDefault:"10"`
	BatchPause    time.Duration `env:"SCAN_BATCH_PAUSE" envDefault:"5s"`
	MaxConcurrent int           `env:"SCAN_MAX_CONCURRENT" envDefault:"4"`

	// Reactive path
	ReplyDelay   time.Duration `env:"REPLY_DELAY" envDefault:"1s"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2m"`

	// Generation backend limits
	GenRatePerSec float64 `env:"GEN_RATE_PER_SEC" envDefault:"2"`
	MaxTokens     int     `env:"GEN_MAX_TOKENS" envDefault:"300"`
	Temperature   float64 `env:"GEN_TEMPERATURE" envDefault:"0.8"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	if cfg.ScanInterval <= 0 {
		return nil, fmt.Errorf("configuration: SCAN_INTERVAL must be positive")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("configuration: SCAN_BATCH_SIZE must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("configuration: POLL_INTERVAL must be positive")
	}
	return cfg, nil
}
