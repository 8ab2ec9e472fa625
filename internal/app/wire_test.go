package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitstack-disputes/config"
	"github.com/fitstack/fitstack-disputes/internal/store/memory"
)

func TestNewPayrixClient(t *testing.T) {
	c, err := NewPayrixClient(config.PayrixConfig{APIKey: "k", Environment: "production"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.payrix.com/", c.BaseURL())

	c, err = NewPayrixClient(config.PayrixConfig{APIKey: "k", Environment: "test", BaseURL: "http://localhost:9000"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/", c.BaseURL())

	_, err = NewPayrixClient(config.PayrixConfig{APIKey: "k", Environment: "staging"})
	assert.Error(t, err)

	_, err = NewPayrixClient(config.PayrixConfig{Environment: "test"})
	assert.Error(t, err)
}

func TestNewActionLog(t *testing.T) {
	actions, closeFn, err := NewActionLog(context.Background(), config.StoreConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &memory.Store{}, actions)

	_, _, err = NewActionLog(context.Background(), config.StoreConfig{Backend: "dynamo"})
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	cfg := &config.Config{
		Payrix:           config.PayrixConfig{APIKey: "k", Environment: "test", RateLimit: 10, MaxRetries: 1},
		Store:            config.StoreConfig{Backend: config.BackendMemory},
		Webhook:          config.WebhookConfig{Secret: "s"},
		BatchConcurrency: 2,
	}
	deps, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	assert.NotNil(t, deps.Service)
	assert.NotNil(t, deps.Engine)
	assert.True(t, deps.Webhooks.Enabled())
	assert.Equal(t, "X-Webhook-Secret", deps.Webhooks.Header())
}
