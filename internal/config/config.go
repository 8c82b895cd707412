package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, populated from environment variables
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"autohaul.db"`
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	JWTSecret          string `env:"JWT_SECRET" envDefault:"autohaul-secret-key"`
	TokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"60"`

	RateLimit         int `env:"RATE_LIMIT" envDefault:"100"`
	RateLimitWindow   int `env:"RATE_LIMIT_WINDOW" envDefault:"600"`
	IdempotencyTTL    int `env:"IDEMPOTENCY_TTL" envDefault:"300"`
	QuoteCacheTTL     int `env:"PRICE_CACHE_TTL" envDefault:"60"`

	WebhookURL     string `env:"WEBHOOK_URL" envDefault:"http://localhost:9090/webhook"`
	WebhookTimeout int    `env:"WEBHOOK_TIMEOUT" envDefault:"10"`
	WebhookRetries int    `env:"WEBHOOK_RETRIES" envDefault:"3"`
}

// Load parses configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RateLimitWindowDuration returns the rate limit window as a duration
func (c *Config) RateLimitWindowDuration() time.Duration {
	return time.Duration(c.RateLimitWindow) * time.Second
}

// IdempotencyTTLDuration returns the idempotency TTL as a duration
func (c *Config) IdempotencyTTLDuration() time.Duration {
	return time.Duration(c.IdempotencyTTL) * time.Second
}

// QuoteCacheTTLDuration returns the quote cache TTL as a duration
func (c *Config) QuoteCacheTTLDuration() time.Duration {
	return time.Duration(c.QuoteCacheTTL) * time.Second
}

// WebhookTimeoutDuration returns the per-attempt webhook timeout as a duration
func (c *Config) WebhookTimeoutDuration() time.Duration {
	return time.Duration(c.WebhookTimeout) * time.Second
}

// TokenExpireDuration returns the JWT lifetime as a duration
func (c *Config) TokenExpireDuration() time.Duration {
	return time.Duration(c.TokenExpireMinutes) * time.Minute
}
