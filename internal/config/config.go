// Package config defines the configuration for the digest mailer services.
// Configuration is loaded once at process initialization and is immutable
// thereafter, following 12-Factor principles: OS environment wins over the
// optional dotenv file, and any missing required value fails startup.
package config

import (
	"time"

	"roomdigest/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Email    EmailConfig
	Digest   DigestConfig
	Tokens   TokenConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicBaseURL is the externally reachable base URL of the HTTP API,
	// used in unsubscribe links (no trailing slash).
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// DigestQueue and DlqURL are required by the worker only; see LoadWorker.
	DigestQueue string `envconfig:"SQS_DIGEST_QUEUE" validate:"omitempty,url"`
	DlqURL      string `envconfig:"SQS_DLQ" validate:"omitempty,url"`

	// SESConfigSet is the SES configuration set for delivery tracking.
	// Optional.
	SESConfigSet string `envconfig:"SES_CONFIG_SET"`

	// EndpointURL points AWS clients at LocalStack. Empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds sender identity and delivery configuration. FromAddress
// is required by the worker only; see LoadWorker.
type EmailConfig struct {
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" validate:"omitempty,email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"Chatter"`
}

// DigestConfig holds the digest engine's tuning parameters.
type DigestConfig struct {
	// AppName is the product name rendered into subjects and templates.
	AppName string `envconfig:"DIGEST_APP_NAME" default:"Chatter"`

	// StateFetchLimit caps concurrent room-state fetches per digest build.
	StateFetchLimit int `envconfig:"DIGEST_STATE_FETCH_LIMIT" default:"3"`

	// PermalinkBase is the prefix for room and event permalinks.
	PermalinkBase string `envconfig:"DIGEST_PERMALINK_BASE" default:"https://matrix.to/#"`

	// MediaBaseURL is the public base URL for media thumbnails (no trailing
	// slash). Required by the worker only; see LoadWorker.
	MediaBaseURL string `envconfig:"DIGEST_MEDIA_BASE_URL" validate:"omitempty,url"`

	// MaxRetries, MinRetryWait, and MaxRetryWait shape the retry backoff for
	// failed digest jobs.
	MaxRetries   int           `envconfig:"DIGEST_MAX_RETRIES" default:"5"`
	MinRetryWait time.Duration `envconfig:"DIGEST_MIN_RETRY_WAIT" default:"30s"`
	MaxRetryWait time.Duration `envconfig:"DIGEST_MAX_RETRY_WAIT" default:"15m"`
}

// TokenConfig holds the signing configuration for unsubscribe tokens.
type TokenConfig struct {
	Secret SecretString `envconfig:"TOKEN_SECRET" validate:"required,min=32"`
	// Issuer names this deployment inside minted tokens.
	Issuer string `envconfig:"TOKEN_ISSUER" validate:"required"`
}
