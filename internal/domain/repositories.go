// Package domain contains the core business entities and interfaces for the dispute service.
package domain

import "context"

// DisputePlatform is the API client the dispute engine consumes.
// This is a "port" in hexagonal architecture - the domain defines what it needs,
// and infrastructure provides the implementation. Rate limiting, retries and
// pagination live behind it.
type DisputePlatform interface {
	// FetchDispute returns the current record. Returns ErrNotFound if the
	// dispute doesn't exist.
	FetchDispute(ctx context.Context, id string) (*DisputeRecord, error)

	// CreateMessage sends one chargeback message, including any documents
	// in the payload.
	CreateMessage(ctx context.Context, disputeID string, msgType MessageType, payload MessagePayload) (*MessageRecord, error)

	// CreateDocument uploads a single evidence document.
	CreateDocument(ctx context.Context, disputeID string, doc NewDocument) (*DocumentRecord, error)

	// SearchDisputes returns every record matching the filter.
	SearchDisputes(ctx context.Context, filter SearchFilter) ([]DisputeRecord, error)
}

// ActionLog persists the idempotency tuple (dispute id, last observed stage,
// last action time). It never stores a dispute record or handle.
type ActionLog interface {
	// Record stores obs, replacing any previous observation for the dispute.
	Record(ctx context.Context, obs Observation) error

	// Last returns the most recent observation and whether one exists.
	Last(ctx context.Context, disputeID string) (Observation, bool, error)
}

// StageNotifier tells the host backend about observed stage changes.
type StageNotifier interface {
	NotifyStageChange(ctx context.Context, change StageChange) error
}
