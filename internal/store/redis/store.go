// Package redis is a domain.ActionLog backed by Redis. Each dispute is one
// hash holding only the idempotency tuple.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

const defaultNamespace = "dispute:observation"

// Option configures a Store.
type Option func(*Store)

// WithNamespace sets the key prefix. Keys are "<namespace>:<dispute id>".
func WithNamespace(ns string) Option {
	return func(s *Store) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// WithTTL expires observations after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// Store implements domain.ActionLog.
type Store struct {
	client    *goredis.Client
	namespace string
	ttl       time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, opts *goredis.Options, storeOpts ...Option) (*Store, error) {
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewWithClient(client, storeOpts...), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, opts ...Option) *Store {
	s := &Store{client: client, namespace: defaultNamespace}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(disputeID string) string {
	return s.namespace + ":" + disputeID
}

// Record implements domain.ActionLog.
func (s *Store) Record(ctx context.Context, obs domain.Observation) error {
	if obs.DisputeID == "" {
		return errors.New("redis: observation has no dispute id")
	}

	fields := map[string]interface{}{
		"stage":       obs.Stage,
		"action":      obs.Action,
		"observed_at": formatTime(obs.ObservedAt),
		"acted_at":    formatTime(obs.ActedAt),
	}

	key := s.key(obs.DisputeID)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: record %s: %w", obs.DisputeID, err)
	}
	return nil
}

// Last implements domain.ActionLog.
func (s *Store) Last(ctx context.Context, disputeID string) (domain.Observation, bool, error) {
	vals, err := s.client.HGetAll(ctx, s.key(disputeID)).Result()
	if err != nil {
		return domain.Observation{}, false, fmt.Errorf("redis: last %s: %w", disputeID, err)
	}
	if len(vals) == 0 {
		return domain.Observation{}, false, nil
	}

	obs := domain.Observation{
		DisputeID: disputeID,
		Stage:     vals["stage"],
		Action:    vals["action"],
	}
	if obs.ObservedAt, err = parseTime(vals["observed_at"]); err != nil {
		return domain.Observation{}, false, fmt.Errorf("redis: last %s: observed_at: %w", disputeID, err)
	}
	if obs.ActedAt, err = parseTime(vals["acted_at"]); err != nil {
		return domain.Observation{}, false, fmt.Errorf("redis: last %s: acted_at: %w", disputeID, err)
	}
	return obs, true, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
