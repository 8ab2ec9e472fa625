package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "PAYRIX_API_KEY", "PAYRIX_ENV", "PAYRIX_RATE_LIMIT", "PAYRIX_MAX_RETRIES",
		"PAYRIX_RETRY_DELAY", "WEBHOOK_HEADER", "ACTION_LOG_BACKEND", "BATCH_CONCURRENCY", "POSTGRES_ENSURE_SCHEMA",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Payrix.Environment)
	assert.Equal(t, 100, cfg.Payrix.RateLimit)
	assert.Equal(t, 3, cfg.Payrix.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Payrix.RetryDelay)
	assert.Equal(t, "X-Webhook-Secret", cfg.Webhook.Header)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.True(t, cfg.Store.EnsureSchema)
	assert.Equal(t, 4, cfg.BatchConcurrency)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PAYRIX_API_KEY", "key")
	t.Setenv("PAYRIX_ENV", "production")
	t.Setenv("PAYRIX_RETRY_DELAY", "250ms")
	t.Setenv("PAYRIX_TIMEOUT", "5")
	t.Setenv("PAYRIX_RATE_LIMIT", "not-a-number")
	t.Setenv("ACTION_LOG_BACKEND", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("POSTGRES_ENSURE_SCHEMA", "false")

	cfg := Load()
	assert.Equal(t, "key", cfg.Payrix.APIKey)
	assert.Equal(t, "production", cfg.Payrix.Environment)
	assert.Equal(t, 250*time.Millisecond, cfg.Payrix.RetryDelay)
	assert.Equal(t, 5*time.Second, cfg.Payrix.Timeout)
	assert.Equal(t, 100, cfg.Payrix.RateLimit)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Store.RedisDB)
	assert.False(t, cfg.Store.EnsureSchema)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Payrix:           PayrixConfig{APIKey: "k", Environment: "test"},
			Store:            StoreConfig{Backend: BackendMemory},
			BatchConcurrency: 1,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api key", func(c *Config) { c.Payrix.APIKey = "" }},
		{"bad environment", func(c *Config) { c.Payrix.Environment = "staging" }},
		{"negative retries", func(c *Config) { c.Payrix.MaxRetries = -1 }},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "dynamo" }},
		{"zero concurrency", func(c *Config) { c.BatchConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
