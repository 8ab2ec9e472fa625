// Package config handles loading and managing application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Payrix API configuration
	Payrix PayrixConfig

	// Webhook authentication
	Webhook WebhookConfig

	// Action log backend
	Store StoreConfig

	// Host backend callback
	Callback CallbackConfig

	// BatchConcurrency bounds parallel dispute pipelines.
	BatchConcurrency int
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    string
	GinMode string // "debug", "release", or "test"
}

// PayrixConfig holds Payrix API configuration.
type PayrixConfig struct {
	APIKey      string
	Environment string // "test" or "production"
	BaseURL     string // overrides Environment when set
	RateLimit   int    // requests per minute
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// WebhookConfig holds the header/secret pair Payrix sends with webhooks.
type WebhookConfig struct {
	Header string
	Secret string
}

// StoreConfig selects and configures the action log.
type StoreConfig struct {
	Backend       string // "memory", "redis" or "postgres"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	EnsureSchema  bool // create the postgres table on startup
}

// CallbackConfig holds the host backend notification endpoint.
type CallbackConfig struct {
	URL    string
	APIKey string
}

// Action log backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Load reads configuration from environment variables.
// Returns a Config struct with all settings populated.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Payrix: PayrixConfig{
			APIKey:      getEnv("PAYRIX_API_KEY", ""),
			Environment: getEnv("PAYRIX_ENV", "test"),
			BaseURL:     getEnv("PAYRIX_BASE_URL", ""),
			RateLimit:   getEnvInt("PAYRIX_RATE_LIMIT", 100),
			MaxRetries:  getEnvInt("PAYRIX_MAX_RETRIES", 3),
			RetryDelay:  getEnvDuration("PAYRIX_RETRY_DELAY", 10*time.Second),
			Timeout:     getEnvDuration("PAYRIX_TIMEOUT", 30*time.Second),
		},
		Webhook: WebhookConfig{
			Header: getEnv("WEBHOOK_HEADER", "X-Webhook-Secret"),
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
		Store: StoreConfig{
			Backend:       getEnv("ACTION_LOG_BACKEND", BackendMemory),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			DatabaseURL:   getEnv("DATABASE_URL", ""),
			EnsureSchema:  getEnvBool("POSTGRES_ENSURE_SCHEMA", true),
		},
		Callback: CallbackConfig{
			URL:    getEnv("CALLBACK_URL", ""),
			APIKey: getEnv("CALLBACK_API_KEY", ""),
		},
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 4),
	}
}

// Validate checks that required configuration values are set and consistent.
func (c *Config) Validate() error {
	var errs []error
	if c.Payrix.APIKey == "" {
		errs = append(errs, errors.New("PAYRIX_API_KEY is required"))
	}
	switch c.Payrix.Environment {
	case "test", "sandbox", "production", "prod":
	default:
		errs = append(errs, fmt.Errorf("PAYRIX_ENV must be test or production, got %q", c.Payrix.Environment))
	}
	if c.Payrix.MaxRetries < 0 {
		errs = append(errs, errors.New("PAYRIX_MAX_RETRIES must not be negative"))
	}
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres action log"))
		}
	default:
		errs = append(errs, fmt.Errorf("ACTION_LOG_BACKEND must be memory, redis or postgres, got %q", c.Store.Backend))
	}
	if c.BatchConcurrency <= 0 {
		errs = append(errs, errors.New("BATCH_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean with a fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("10s") or plain seconds ("10").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
