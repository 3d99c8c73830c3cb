// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for users, sessions, and refresh-token records.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis address for the blocklist and lockout counters (host:port).
	RedisURL string `mapstructure:"REDIS_URL"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the Redis logical database number.
	RedisDB int `mapstructure:"REDIS_DB"`

	// JWTAccessSecret signs access tokens (HS256). Must be at least 64 chars.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens (HS256). Must be at least 64 chars and differ from the access secret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim on both token kinds.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessAudience is the aud claim on access tokens.
	JWTAccessAudience string `mapstructure:"JWT_ACCESS_AUDIENCE"`
	// JWTRefreshAudience is the aud claim on refresh tokens; distinct from the access audience so a refresh token is never accepted as an access token.
	JWTRefreshAudience string `mapstructure:"JWT_REFRESH_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`

	// SessionAbsoluteTTL is the hard ceiling on a session's life regardless of refresh activity (e.g. "8h").
	SessionAbsoluteTTL string `mapstructure:"SESSION_ABSOLUTE_TTL"`

	// MaxFailedAttempts is the failed-login count at which an identifier is locked out.
	MaxFailedAttempts int `mapstructure:"MAX_FAILED_ATTEMPTS"`
	// LockoutWindow is the sliding window for the failed-attempt counter (e.g. "15m").
	LockoutWindow string `mapstructure:"LOCKOUT_WINDOW"`
	// LockoutFailOpen controls the lockout guard's policy when Redis is unreachable:
	// true allows the attempt with a logged warning, false rejects it. Failing closed
	// turns a Redis outage into a login outage, so the default is open.
	LockoutFailOpen bool `mapstructure:"LOCKOUT_FAIL_OPEN"`

	// BlocklistRetries is how many times a failed blocklist lookup is retried before the request fails closed.
	BlocklistRetries int `mapstructure:"BLOCKLIST_RETRIES"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// AuditKafkaBrokers is a comma-separated list of Kafka broker addresses. When empty, audit events are logged locally.
	AuditKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic audit events are published to.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the audit worker pushes events to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OTLP gRPC endpoint for traces and metrics; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ISSUER", "porichoy.gov.bd")
	v.SetDefault("JWT_ACCESS_AUDIENCE", "porichoy-client")
	v.SetDefault("JWT_REFRESH_AUDIENCE", "porichoy-refresh")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("SESSION_ABSOLUTE_TTL", "8h")
	v.SetDefault("MAX_FAILED_ATTEMPTS", 5)
	v.SetDefault("LOCKOUT_WINDOW", "15m")
	v.SetDefault("LOCKOUT_FAIL_OPEN", true)
	v.SetDefault("BLOCKLIST_RETRIES", 2)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "auth-audit")
	v.SetDefault("KAFKA_GROUP_ID", "auth-audit-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if len(cfg.JWTAccessSecret) < 64 {
		return nil, errors.New("config: JWT_ACCESS_SECRET must be at least 64 characters")
	}
	if len(cfg.JWTRefreshSecret) < 64 {
		return nil, errors.New("config: JWT_REFRESH_SECRET must be at least 64 characters")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if cfg.JWTAccessAudience == cfg.JWTRefreshAudience {
		return nil, errors.New("config: JWT_ACCESS_AUDIENCE and JWT_REFRESH_AUDIENCE must differ")
	}

	if cfg.MaxFailedAttempts <= 0 {
		return nil, errors.New("config: MAX_FAILED_ATTEMPTS must be positive")
	}

	if cfg.BlocklistRetries < 0 {
		return nil, errors.New("config: BLOCKLIST_RETRIES must not be negative")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// SessionTTL parses SessionAbsoluteTTL as a time.Duration. Returns 8h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionAbsoluteTTL)
	if err != nil || d <= 0 {
		return 8 * time.Hour
	}
	return d
}

// LockoutTTL parses LockoutWindow as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) LockoutTTL() time.Duration {
	d, err := time.ParseDuration(c.LockoutWindow)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka audit sink is enabled (non-empty list) and to create the producer.
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil || c.AuditKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
