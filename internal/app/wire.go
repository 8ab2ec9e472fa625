// Package app wires the dispute service from configuration. Both the HTTP
// server and the CLI build their dependencies here.
package app

import (
	"context"
	"fmt"
	"log"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fitstack/fitstack-disputes/config"
	"github.com/fitstack/fitstack-disputes/internal/casework"
	"github.com/fitstack/fitstack-disputes/internal/dispute"
	"github.com/fitstack/fitstack-disputes/internal/domain"
	"github.com/fitstack/fitstack-disputes/internal/platform/callback"
	"github.com/fitstack/fitstack-disputes/internal/platform/payrix"
	"github.com/fitstack/fitstack-disputes/internal/store/memory"
	"github.com/fitstack/fitstack-disputes/internal/store/postgres"
	"github.com/fitstack/fitstack-disputes/internal/store/redis"
)

// Deps holds everything a process needs to serve disputes.
type Deps struct {
	Payrix   *payrix.Client
	Engine   *dispute.Engine
	Service  *casework.Service
	Webhooks *payrix.WebhookValidator

	closers []func()
}

// Close releases store connections.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// Build wires the dependencies described by cfg.
func Build(ctx context.Context, cfg *config.Config) (*Deps, error) {
	// Infrastructure Layer
	client, err := NewPayrixClient(cfg.Payrix)
	if err != nil {
		return nil, err
	}

	deps := &Deps{
		Payrix:   client,
		Engine:   dispute.NewEngine(client),
		Webhooks: payrix.NewWebhookValidator(cfg.Webhook.Header, cfg.Webhook.Secret),
	}

	actions, closeStore, err := NewActionLog(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, closeStore)

	// A nil *callback.Client must not reach the service as a non-nil interface.
	var notifier domain.StageNotifier
	if cfg.Callback.URL != "" {
		notifier = callback.NewClient(cfg.Callback.URL, cfg.Callback.APIKey)
	} else {
		log.Println("Warning: CALLBACK_URL not set, stage changes are only logged")
	}

	// Service Layer
	deps.Service = casework.NewService(deps.Engine, actions, notifier,
		casework.WithBatchConcurrency(cfg.BatchConcurrency))

	return deps, nil
}

// NewPayrixClient builds the platform client from its configuration.
func NewPayrixClient(cfg config.PayrixConfig) (*payrix.Client, error) {
	env, err := payrix.ParseEnvironment(cfg.Environment)
	if err != nil {
		return nil, err
	}

	opts := []payrix.Option{
		payrix.WithEnvironment(env),
		payrix.WithRateLimit(cfg.RateLimit),
		payrix.WithRetry(cfg.MaxRetries, cfg.RetryDelay),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, payrix.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, payrix.WithTimeout(cfg.Timeout))
	}
	return payrix.NewClient(cfg.APIKey, opts...)
}

// NewActionLog opens the configured action log. The returned func closes it.
func NewActionLog(ctx context.Context, cfg config.StoreConfig) (domain.ActionLog, func(), error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		log.Println("Warning: using the in-memory action log, observations are lost on restart")
		return memory.New(), func() {}, nil

	case config.BackendRedis:
		store, err := redis.New(ctx, &goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Action log: redis at %s", cfg.RedisAddr)
		return store, func() { _ = store.Close() }, nil

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(pool)
		if cfg.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		log.Println("Action log: postgres")
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown action log backend %q", cfg.Backend)
	}
}
