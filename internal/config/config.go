package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
)

const (
	StoreBackendFile   = "file"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

type Config struct {
	API     APIConfig
	Store   StoreConfig
	Payment PaymentConfig
	Breaker BreakerConfig

	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	FakeBackendPort string `env:"FAKE_BACKEND_PORT" envDefault:"5000"`
}

type APIConfig struct {
	BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:5000/api"`
	// Zero means no per-request timeout; only the payment poll budget bounds
	// waiting.
	RequestTimeout time.Duration `env:"API_REQUEST_TIMEOUT" envDefault:"0s"`
}

type StoreConfig struct {
	Backend       string `env:"STORE_BACKEND" envDefault:"file"`
	Dir           string `env:"STORE_DIR" envDefault:".campus-market"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_KEY_PREFIX" envDefault:"storefront"`
}

type PaymentConfig struct {
	CountryCode  string        `env:"MPESA_COUNTRY_CODE" envDefault:"254"`
	PollInterval time.Duration `env:"PAYMENT_POLL_INTERVAL" envDefault:"6s"`
	PollAttempts int           `env:"PAYMENT_POLL_ATTEMPTS" envDefault:"20"`
	SuccessDelay time.Duration `env:"PAYMENT_SUCCESS_DELAY" envDefault:"2s"`
}

type BreakerConfig struct {
	MaxFailures uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	OpenTimeout time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case StoreBackendFile, StoreBackendRedis, StoreBackendMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("config: API_BASE_URL is required")
	}
	if c.Payment.PollAttempts < 1 {
		return fmt.Errorf("config: PAYMENT_POLL_ATTEMPTS must be positive")
	}
	if c.Payment.PollInterval <= 0 {
		return fmt.Errorf("config: PAYMENT_POLL_INTERVAL must be positive")
	}
	if c.Payment.CountryCode == "" {
		return fmt.Errorf("config: MPESA_COUNTRY_CODE is required")
	}
	return nil
}
