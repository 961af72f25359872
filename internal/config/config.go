// Package config loads and validates app config from env and an optional .env file using Viper.
// The same Config is shared by the gateway, the auth service and the user-sync services; each
// binary validates only the fields it needs via the Require* helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSecretLen is the minimum HMAC key length in bytes (HS256 block-size security).
const minSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// ServiceName identifies the process in logs, traces and the OTel resource (e.g. "stall-service").
	ServiceName string `mapstructure:"SERVICE_NAME"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN of the service's own database.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTSecret is the shared HMAC secret used to sign and verify bearer tokens.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// KafkaEnabled turns the lifecycle event transport on. When false, publishing is a no-op
	// and user-sync services do not start consumers.
	KafkaEnabled bool `mapstructure:"KAFKA_ENABLED"`
	// KafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// UserEventsTopic is the topic carrying user lifecycle events; the dead-letter topic is "<topic>.DLT".
	UserEventsTopic string `mapstructure:"USER_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group of a user-sync service (one per downstream service).
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// ConsumerConcurrency is the number of parallel consumer workers.
	ConsumerConcurrency int `mapstructure:"CONSUMER_CONCURRENCY"`

	RetryMaxAttempts     int           `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryInitialInterval time.Duration `mapstructure:"RETRY_INITIAL_INTERVAL"`
	RetryMaxInterval     time.Duration `mapstructure:"RETRY_MAX_INTERVAL"`
	RetryMultiplier      float64       `mapstructure:"RETRY_MULTIPLIER"`

	// PublishWorkers and PublishQueueSize bound the background lifecycle event dispatcher.
	PublishWorkers   int `mapstructure:"PUBLISH_WORKERS"`
	PublishQueueSize int `mapstructure:"PUBLISH_QUEUE_SIZE"`

	PasswordResetEnabled bool          `mapstructure:"PASSWORD_RESET_ENABLED"`
	PasswordResetTTL     time.Duration `mapstructure:"PASSWORD_RESET_TTL"`
	PasswordResetBaseURL string        `mapstructure:"PASSWORD_RESET_BASE_URL"`

	// GatewayPublicPaths is a comma-separated list of path patterns that bypass authentication.
	GatewayPublicPaths string `mapstructure:"GATEWAY_PUBLIC_PATHS"`
	// GatewayRoutes maps path prefixes to upstream base URLs: "/api/auth=http://auth:8081,/api/stalls=http://stall:8082".
	GatewayRoutes string `mapstructure:"GATEWAY_ROUTES"`
	// GatewayAdminPaths is a comma-separated list of path patterns restricted to the ADMIN role.
	GatewayAdminPaths string `mapstructure:"GATEWAY_ADMIN_PATHS"`

	RateLimitPerMinute int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogDev   bool   `mapstructure:"LOG_DEV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SERVICE_NAME", "bookfair")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("USER_EVENTS_TOPIC", "user-events")
	v.SetDefault("KAFKA_GROUP_ID", "user-sync")
	v.SetDefault("CONSUMER_CONCURRENCY", 1)
	v.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	v.SetDefault("RETRY_INITIAL_INTERVAL", "1s")
	v.SetDefault("RETRY_MAX_INTERVAL", "60s")
	v.SetDefault("RETRY_MULTIPLIER", 2.0)
	v.SetDefault("PUBLISH_WORKERS", 2)
	v.SetDefault("PUBLISH_QUEUE_SIZE", 256)
	v.SetDefault("PASSWORD_RESET_ENABLED", true)
	v.SetDefault("PASSWORD_RESET_TTL", "30m")
	v.SetDefault("PASSWORD_RESET_BASE_URL", "http://localhost:4200/reset-password")
	v.SetDefault("GATEWAY_PUBLIC_PATHS", "/api/auth/register,/api/auth/login,/api/auth/refresh-token,/api/auth/forgot-password,/api/auth/reset-password,/healthz,/metrics")
	v.SetDefault("GATEWAY_ROUTES", "")
	v.SetDefault("GATEWAY_ADMIN_PATHS", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 300)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("LOG_DEV", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.ConsumerConcurrency < 1 {
		return nil, errors.New("config: CONSUMER_CONCURRENCY must be at least 1")
	}
	if cfg.RetryMaxAttempts < 1 {
		return nil, errors.New("config: RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.RetryMultiplier < 1 {
		return nil, errors.New("config: RETRY_MULTIPLIER must be >= 1")
	}
	if cfg.PasswordResetTTL < time.Minute {
		return nil, errors.New("config: PASSWORD_RESET_TTL must be at least 1m")
	}
	if cfg.PasswordResetEnabled && strings.TrimSpace(cfg.PasswordResetBaseURL) == "" {
		return nil, errors.New("config: PASSWORD_RESET_BASE_URL must be set when password reset is enabled")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokersList()) == 0 {
		return nil, errors.New("config: KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return &cfg, nil
}

// RequireSecret validates that JWT_SECRET is set and long enough. Called by binaries that sign or verify tokens.
func (c *Config) RequireSecret() error {
	if len(c.JWTSecret) < minSecretLen {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", minSecretLen)
	}
	return nil
}

// RequireDatabase validates that DATABASE_URL is set.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	return nil
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

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// PublicPaths returns the gateway public path patterns.
func (c *Config) PublicPaths() []string {
	return splitList(c.GatewayPublicPaths)
}

// AdminPaths returns the gateway path patterns restricted to administrators.
func (c *Config) AdminPaths() []string {
	return splitList(c.GatewayAdminPaths)
}

// Routes parses GatewayRoutes into prefix → upstream URL pairs, preserving order.
func (c *Config) Routes() ([]Route, error) {
	var out []Route
	for _, entry := range splitList(c.GatewayRoutes) {
		prefix, target, ok := strings.Cut(entry, "=")
		prefix, target = strings.TrimSpace(prefix), strings.TrimSpace(target)
		if !ok || prefix == "" || target == "" {
			return nil, fmt.Errorf("config: invalid GATEWAY_ROUTES entry %q", entry)
		}
		out = append(out, Route{Prefix: prefix, Target: target})
	}
	return out, nil
}

// Route is a gateway path prefix and the upstream base URL it forwards to.
type Route struct {
	Prefix string
	Target string
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
