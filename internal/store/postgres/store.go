// Package postgres is a domain.ActionLog backed by PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS dispute_observations (
		dispute_id  TEXT PRIMARY KEY,
		stage       TEXT NOT NULL,
		action      TEXT NOT NULL DEFAULT '',
		observed_at TIMESTAMPTZ NOT NULL,
		acted_at    TIMESTAMPTZ
	)
`

// NewPool constructs a pgx connection pool using the provided connection string.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

// Store implements domain.ActionLog. One row per dispute.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the observations table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Record implements domain.ActionLog.
func (s *Store) Record(ctx context.Context, obs domain.Observation) error {
	if obs.DisputeID == "" {
		return errors.New("postgres: observation has no dispute id")
	}

	const query = `
		INSERT INTO dispute_observations (dispute_id, stage, action, observed_at, acted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (dispute_id) DO UPDATE
		SET stage = EXCLUDED.stage,
		    action = EXCLUDED.action,
		    observed_at = EXCLUDED.observed_at,
		    acted_at = EXCLUDED.acted_at
	`
	if _, err := s.pool.Exec(ctx, query, obs.DisputeID, obs.Stage, obs.Action, obs.ObservedAt, nullTime(obs.ActedAt)); err != nil {
		return fmt.Errorf("postgres: record: %w", err)
	}
	return nil
}

// Last implements domain.ActionLog.
func (s *Store) Last(ctx context.Context, disputeID string) (domain.Observation, bool, error) {
	const query = `
		SELECT dispute_id, stage, action, observed_at, acted_at
		FROM dispute_observations
		WHERE dispute_id = $1
	`

	var (
		obs   domain.Observation
		acted *time.Time
	)
	err := s.pool.QueryRow(ctx, query, disputeID).
		Scan(&obs.DisputeID, &obs.Stage, &obs.Action, &obs.ObservedAt, &acted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Observation{}, false, nil
		}
		return domain.Observation{}, false, fmt.Errorf("postgres: last: %w", err)
	}
	if acted != nil {
		obs.ActedAt = *acted
	}
	return obs, true, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
