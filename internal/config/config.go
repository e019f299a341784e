// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// ErrNoIdentityProvider is returned when neither a JWT secret nor a provider URL is set.
var ErrNoIdentityProvider = errors.New("either IDENTITY_JWT_SECRET or IDENTITY_PROVIDER_URL must be set")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL      string `env:"DATABASE_URL,required"`
	MigrateOnStart   bool   `env:"DB_MIGRATE_ON_START" envDefault:"true"`
	DatabaseMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	// Cache (Redis)
	RedisURL        string        `env:"REDIS_URL,required"`
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"5m"`

	// Identity provider. A JWT secret enables local verification; otherwise
	// tokens are validated against the provider's user endpoint.
	IdentityJWTSecret      string        `env:"IDENTITY_JWT_SECRET"`
	IdentityJWTIssuer      string        `env:"IDENTITY_JWT_ISSUER"`
	IdentityProviderURL    string        `env:"IDENTITY_PROVIDER_URL"`
	IdentityProviderAPIKey string        `env:"IDENTITY_PROVIDER_API_KEY"`
	IdentityTimeout        time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"5s"`

	// Permissions not ending in .view or .manage are denied unless this is set.
	PermissionDefaultAllow bool `env:"PERMISSION_DEFAULT_ALLOW" envDefault:"false"`

	// Email (Postmark)
	PostmarkServerToken string `env:"POSTMARK_SERVER_TOKEN"`
	EmailFrom           string `env:"EMAIL_FROM" envDefault:"rewards@tallyvox.local"`
	EmailAPIURL         string `env:"EMAIL_API_URL" envDefault:"https://api.postmarkapp.com/email"`

	// Events (RabbitMQ). Empty disables publishing.
	AMQPURL string `env:"AMQP_URL"`

	// Tracing
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (per authenticated user)
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIRPM     int  `env:"RATE_LIMIT_API_RPM" envDefault:"120"`
	RateLimitAPIBurst   int  `env:"RATE_LIMIT_API_BURST" envDefault:"20"`

	// Rate limiting (per client IP, applied before authentication)
	RateLimitIPEnabled bool `env:"RATE_LIMIT_IP_ENABLED" envDefault:"true"`
	RateLimitIPRPS     int  `env:"RATE_LIMIT_IP_RPS" envDefault:"20"`
	RateLimitIPBurst   int  `env:"RATE_LIMIT_IP_BURST" envDefault:"40"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesJWTProvider reports whether tokens are verified locally.
func (c *Config) UsesJWTProvider() bool {
	return c.IdentityJWTSecret != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	if c.IdentityJWTSecret == "" && c.IdentityProviderURL == "" {
		return ErrNoIdentityProvider
	}
	if c.RateLimitAPIEnabled && c.RateLimitAPIRPM < 0 {
		return fmt.Errorf("RATE_LIMIT_API_RPM must not be negative")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// A .env file in the working directory is loaded first when present.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
