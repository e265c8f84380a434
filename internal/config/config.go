// Package config holds the process configuration for every courier binary.
//
// Values are resolved in priority order:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Configuration is loaded once at startup and never mutated. A missing
// required value or an invalid format aborts startup.
package config

import (
	"time"

	"courier/internal/types"
)

// SecretString is re-exported so callers can declare secret fields without
// importing types.
type SecretString = types.SecretString

// Config is the top-level configuration. Components receive only the
// sub-struct they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"courier"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	AWS           AWSConfig
	Email         EmailConfig
	SMS           SMSConfig
	Webhook       WebhookConfig
	Delivery      DeliveryConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig configures the inspection/submission HTTP API.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	MaxBodyBytes    int64         `envconfig:"HTTP_MAX_BODY_BYTES" default:"1048576"`
}

// DatabaseConfig holds the pgx pool settings.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`

	// AutoMigrate applies the embedded schema at API startup.
	AutoMigrate bool `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig configures the shared tier of the catalog cache. An empty
// Addr disables the shared tier.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password SecretString  `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
	LocalTTL time.Duration `envconfig:"CATALOG_LOCAL_TTL" default:"30s"`

	// IdempotencyTTL is how long a completed Idempotency-Key response is
	// replayed.
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region           string `envconfig:"AWS_REGION" default:"us-east-1"`
	SendQueueURL     string `envconfig:"SQS_SEND_QUEUE" validate:"required,url"`
	AttachmentBucket string `envconfig:"ATTACHMENT_BUCKET" validate:"required"`

	// LocalStack support. Empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig selects and configures the email provider.
type EmailConfig struct {
	Provider         string       `envconfig:"EMAIL_PROVIDER" default:"ses" validate:"oneof=ses postmark stub"`
	FromAddress      string       `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@courier.local" validate:"email"`
	FromName         string       `envconfig:"EMAIL_FROM_NAME" default:"Courier"`
	SESConfigSet     string       `envconfig:"SES_CONFIGURATION_SET"`
	PostmarkServer   SecretString `envconfig:"POSTMARK_SERVER_TOKEN" validate:"required_if=Provider postmark"`
	PostmarkAccount  SecretString `envconfig:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkStream   string       `envconfig:"POSTMARK_MESSAGE_STREAM" default:"outbound"`
	MaxAttachmentMiB int          `envconfig:"EMAIL_MAX_ATTACHMENT_MIB" default:"10"`
}

// SMSConfig configures the HTTP SMS gateway. An empty GatewayURL leaves the
// sms.gateway adapter unregistered.
type SMSConfig struct {
	GatewayURL string        `envconfig:"SMS_GATEWAY_URL" validate:"omitempty,url"`
	APIKey     SecretString  `envconfig:"SMS_GATEWAY_API_KEY"`
	SenderID   string        `envconfig:"SMS_SENDER_ID" default:"COURIER"`
	Timeout    time.Duration `envconfig:"SMS_TIMEOUT" default:"10s"`
}

// WebhookConfig configures outbound webhook delivery.
type WebhookConfig struct {
	SigningSecret SecretString  `envconfig:"WEBHOOK_SIGNING_SECRET"`
	UserAgent     string        `envconfig:"WEBHOOK_USER_AGENT" default:"Courier-Webhook/1.0"`
	Timeout       time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	MaxRedirects  int           `envconfig:"WEBHOOK_MAX_REDIRECTS" default:"3"`

	// During secret rotation the previous secret keeps signing (as v1_old)
	// until PreviousSecretUntil.
	PreviousSigningSecret SecretString `envconfig:"WEBHOOK_PREVIOUS_SIGNING_SECRET"`
	PreviousSecretUntil   time.Time    `envconfig:"WEBHOOK_PREVIOUS_SECRET_UNTIL"`

	// AllowPrivateTargets disables the SSRF guard. Only for local runs
	// against webhooks on the same host.
	AllowPrivateTargets bool `envconfig:"WEBHOOK_ALLOW_PRIVATE_TARGETS" default:"false"`
}

// DeliveryConfig tunes the outbox relay and the stale sweeper. The retry
// ceiling and schedule are fixed in the orchestrator.
type DeliveryConfig struct {
	RelayInterval  time.Duration `envconfig:"RELAY_INTERVAL" default:"2s"`
	RelayBatchSize int           `envconfig:"RELAY_BATCH_SIZE" default:"50" validate:"min=1,max=500"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	StaleAfter     time.Duration `envconfig:"STALE_AFTER" default:"15m"`
	WorkerParallel int           `envconfig:"WORKER_PARALLELISM" default:"4" validate:"min=1"`

	// A stale message is re-enqueued at most this many times in total.
	SweepMaxEnqueues int `envconfig:"SWEEP_MAX_ENQUEUES" default:"10" validate:"min=1"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Courier"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo is populated from linker-injected variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
