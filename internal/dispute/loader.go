package dispute

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// Engine turns platform records into stage-bound handles.
// It holds no dispute state of its own and is safe for concurrent use as long
// as the platform is.
type Engine struct {
	platform domain.DisputePlatform
}

// NewEngine creates an engine backed by platform.
func NewEngine(platform domain.DisputePlatform) *Engine {
	return &Engine{platform: platform}
}

// Load fetches the current record for id and returns the handle for its stage.
// It is the only way to obtain a handle for a known dispute.
func (e *Engine) Load(ctx context.Context, id string) (Dispute, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: dispute id is required", domain.ErrValidation)
	}

	rec, err := e.platform.FetchDispute(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load dispute %s: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("load dispute %s: %w", id, domain.ErrNotFound)
	}
	return e.wrap(*rec)
}
