// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// License settings
	LicenseTTLHours int // validity window for issued licenses

	// Payment providers
	StripeWebhookSecret      string // signing secret for Stripe webhook verification (optional)
	MercadoPagoWebhookSecret string
	DLocalWebhookSecret      string

	// Outbound notifications
	NotifySigningSecret string // HMAC secret for signing outbound lifecycle webhooks

	// Security
	AdminSecret  string // Admin API secret (X-Admin-Secret header)
	RateLimitRPS int

	// Sweeper
	SweepInterval string // e.g. "1h"; empty disables the in-process timer

	// Remote settings
	RemoteConfigURL string // JSON endpoint for operator-tunable settings; empty disables

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultLicenseTTLHours = 24
	DefaultRateLimit       = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                     getEnv("PORT", DefaultPort),
		Env:                      getEnv("ENV", DefaultEnv),
		LogLevel:                 getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:              os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		LicenseTTLHours:          int(getEnvInt64("LICENSE_TTL_HOURS", DefaultLicenseTTLHours)),
		StripeWebhookSecret:      os.Getenv("STRIPE_WEBHOOK_SECRET"),
		MercadoPagoWebhookSecret: os.Getenv("MERCADOPAGO_WEBHOOK_SECRET"),
		DLocalWebhookSecret:      os.Getenv("DLOCAL_WEBHOOK_SECRET"),
		NotifySigningSecret:      os.Getenv("NOTIFY_SIGNING_SECRET"),
		AdminSecret:              os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:             int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		SweepInterval:            os.Getenv("SWEEP_INTERVAL"),
		RemoteConfigURL:          os.Getenv("REMOTE_CONFIG_URL"),
		OTLPEndpoint:             os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.LicenseTTLHours <= 0 {
		return fmt.Errorf("LICENSE_TTL_HOURS must be positive")
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
