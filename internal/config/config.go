package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all configuration for the storefront.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Storefront API
	APIBaseURL    string        `env:"STOREFRONT_API_BASE_URL" envDefault:"https://ecommerce.routemisr.com/api/v1"`
	APITimeout    time.Duration `env:"STOREFRONT_API_TIMEOUT" envDefault:"15s"`
	APIMaxRetries int           `env:"STOREFRONT_API_MAX_RETRIES" envDefault:"2"`
	APIRPS        float64       `env:"STOREFRONT_API_RPS" envDefault:"10"`
	APIBurst      int           `env:"STOREFRONT_API_BURST" envDefault:"20"`

	// Local cache
	CacheBackend   string `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheNamespace string `env:"CACHE_NAMESPACE" envDefault:"storefront"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass      string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`

	// Checkout
	CheckoutReturnURL string `env:"CHECKOUT_RETURN_URL" envDefault:"http://localhost:8080/allorders"`

	// Event stream
	EventHeartbeat time.Duration `env:"EVENT_HEARTBEAT" envDefault:"25s"`

	// Activity events. An empty broker list disables publishing.
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	ActivityBuffer int      `env:"ACTIVITY_BUFFER" envDefault:"256"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	for name, rawURL := range map[string]string{
		"STOREFRONT_API_BASE_URL": c.APIBaseURL,
		"CHECKOUT_RETURN_URL":     c.CheckoutReturnURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", name, err)
		}
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("STOREFRONT_API_TIMEOUT must be positive, got %s", c.APITimeout)
	}
	if c.APIMaxRetries < 0 {
		return fmt.Errorf("STOREFRONT_API_MAX_RETRIES must not be negative, got %d", c.APIMaxRetries)
	}
	if c.APIRPS < 0 {
		return fmt.Errorf("STOREFRONT_API_RPS must not be negative, got %f", c.APIRPS)
	}
	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.CacheBackend)
	}
	if c.CacheNamespace == "" {
		return fmt.Errorf("CACHE_NAMESPACE is required")
	}
	if len(c.KafkaBrokers) > 0 && c.ActivityBuffer <= 0 {
		return fmt.Errorf("ACTIVITY_BUFFER must be positive, got %d", c.ActivityBuffer)
	}
	if c.EventHeartbeat <= 0 {
		return fmt.Errorf("EVENT_HEARTBEAT must be positive, got %s", c.EventHeartbeat)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}
