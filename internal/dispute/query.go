package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// ActionableDisputes returns the merchant's open disputes the platform
// currently accepts responses for.
func (e *Engine) ActionableDisputes(ctx context.Context, merchantID string) ([]Dispute, error) {
	return e.search(ctx, domain.SearchFilter{
		MerchantID:     merchantID,
		Status:         domain.StatusOpen,
		ActionableOnly: true,
	})
}

// DisputesByCycle returns the merchant's disputes in one platform cycle.
func (e *Engine) DisputesByCycle(ctx context.Context, merchantID string, cycle domain.Cycle) ([]Dispute, error) {
	return e.search(ctx, domain.SearchFilter{MerchantID: merchantID, Cycle: cycle})
}

// DisputesForTransaction returns every dispute raised against a transaction.
func (e *Engine) DisputesForTransaction(ctx context.Context, txnID string) ([]Dispute, error) {
	if txnID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", domain.ErrValidation)
	}
	return e.search(ctx, domain.SearchFilter{TransactionID: txnID})
}

// search classifies every match. Records that fail classification are left
// out of the result and reported together in the returned error, so a caller
// may use the handles and still log what was skipped.
func (e *Engine) search(ctx context.Context, filter domain.SearchFilter) ([]Dispute, error) {
	records, err := e.platform.SearchDisputes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search disputes: %w", err)
	}

	out := make([]Dispute, 0, len(records))
	var errs []error
	for _, rec := range records {
		d, err := e.wrap(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, d)
	}
	return out, errors.Join(errs...)
}
