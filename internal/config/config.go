package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	DevMode     bool   `envconfig:"DEV_MODE" default:"false"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Lytex     LytexConfig
	Billing   BillingConfig
	RateLimit RateLimitConfig
}

// LytexConfig configures the payment gateway client.
type LytexConfig struct {
	BaseURL string        `envconfig:"LYTEX_BASE_URL" default:"https://api-pay.lytex.com.br"`
	Timeout time.Duration `envconfig:"LYTEX_TIMEOUT" default:"30s"`
}

// BillingConfig configures license billing.
type BillingConfig struct {
	Timezone      string `envconfig:"BILLING_TIMEZONE" default:"America/Sao_Paulo"`
	SweepSchedule string `envconfig:"LICENSE_SWEEP_SCHEDULE" default:"@hourly"`

	location *time.Location
}

// Location returns the billing time zone. Valid after Load.
func (b BillingConfig) Location() *time.Location {
	if b.location == nil {
		return time.UTC
	}
	return b.location
}

// RateLimitConfig configures the per-IP limiter on /private routes.
type RateLimitConfig struct {
	RPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"10"`
	Burst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Billing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BILLING_TIMEZONE %q: %w", cfg.Billing.Timezone, err)
	}
	cfg.Billing.location = loc

	return &cfg, nil
}

func (c *Config) validate() error {
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	u, err := url.Parse(c.Lytex.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("LYTEX_BASE_URL must be an absolute URL, got %q", c.Lytex.BaseURL)
	}
	c.Lytex.BaseURL = strings.TrimRight(c.Lytex.BaseURL, "/")

	if c.Lytex.Timeout <= 0 {
		return fmt.Errorf("LYTEX_TIMEOUT must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// DatabaseTarget describes the connection target without credentials, for logging.
func (c *Config) DatabaseTarget() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "(invalid DATABASE_URL)"
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	user := u.User.Username()
	if user == "" {
		user = "(none)"
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, strings.TrimPrefix(u.Path, "/"), user)
}
