package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load resolves the configuration shared by every process:
//
//  1. Enforce UTC to prevent timestamp drift between services.
//  2. Load a .env file via godotenv when present (non-fatal if absent; OS
//     environment always wins).
//  3. Populate the Config struct from envconfig tags.
//  4. Validate with go-playground/validator and fail fast on any violation.
//
// Delivery settings only the digest worker uses stay optional here so the
// API process can start without them; the worker loads via LoadWorker.
func Load() (*Config, error) {
	time.Local = time.UTC

	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWorker resolves the full configuration and additionally requires the
// queue, sender, and media settings the digest worker cannot run without.
func LoadWorker() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	required := []struct {
		envVar string
		value  string
	}{
		{"SQS_DIGEST_QUEUE", cfg.AWS.DigestQueue},
		{"SQS_DLQ", cfg.AWS.DlqURL},
		{"EMAIL_FROM_ADDRESS", cfg.Email.FromAddress},
		{"DIGEST_MEDIA_BASE_URL", cfg.Digest.MediaBaseURL},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, fmt.Errorf("config: %s is required for the digest worker", f.envVar)
		}
	}

	return cfg, nil
}
