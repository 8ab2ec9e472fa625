// Package memory is an in-process domain.ActionLog for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// Store keeps the latest observation per dispute in a map.
type Store struct {
	mu   sync.RWMutex
	data map[string]domain.Observation
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string]domain.Observation)}
}

// Record implements domain.ActionLog.
func (s *Store) Record(_ context.Context, obs domain.Observation) error {
	if obs.DisputeID == "" {
		return errors.New("memory: observation has no dispute id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[obs.DisputeID] = obs
	return nil
}

// Last implements domain.ActionLog.
func (s *Store) Last(_ context.Context, disputeID string) (domain.Observation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.data[disputeID]
	return obs, ok, nil
}

// Len returns the number of disputes tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
