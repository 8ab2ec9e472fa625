package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

const (
	acceptLiabilitySubject = "Accept Liability"
	acceptLiabilityMessage = "Merchant accepts liability for this chargeback"

	requestArbitrationSubject = "Request Arbitration"
	requestArbitrationMessage = "Merchant requests card network arbitration"
)

// ReloadError means the platform accepted the action but the follow-up fetch
// failed. The action must not be repeated; load the dispute again instead.
type ReloadError struct {
	DisputeID string
	Action    Action
	Err       error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("%s applied to dispute %s, reload failed: %v", e.Action, e.DisputeID, e.Err)
}

// Unwrap exposes domain.ErrActionApplied and the fetch failure.
func (e *ReloadError) Unwrap() []error { return []error{domain.ErrActionApplied, e.Err} }

// Represent contests the chargeback with ev. Evidence is validated before any
// call is made. The returned handle reflects the platform's state after the
// message was accepted, which is not necessarily Representment.
func (r *respondable) Represent(ctx context.Context, ev Evidence) (Dispute, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	payload, err := Package(ev, r.subject)
	if err != nil {
		return nil, err
	}
	return r.engine.transition(ctx, r.base, ActionRepresent, domain.MessageRepresent, payload)
}

// AcceptLiability concedes the chargeback.
func (r *respondable) AcceptLiability(ctx context.Context) (Dispute, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	payload := domain.MessagePayload{Subject: acceptLiabilitySubject, Message: acceptLiabilityMessage}
	return r.engine.transition(ctx, r.base, ActionAcceptLiability, domain.MessageAcceptLiability, payload)
}

// RequestArbitration escalates a pre-arbitration case to the card network.
func (h *PreArbitrationHandle) RequestArbitration(ctx context.Context) (Dispute, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	payload := domain.MessagePayload{Subject: requestArbitrationSubject, Message: requestArbitrationMessage}
	return h.engine.transition(ctx, h.base, ActionRequestArbitration, domain.MessageRequestArbitration, payload)
}

// transition sends exactly one message, then fetches and reclassifies the
// dispute. It never retries. A handle carries at most one message: once the
// platform may have applied it, further calls fail with domain.ErrActionApplied.
func (e *Engine) transition(ctx context.Context, b base, action Action, msgType domain.MessageType, payload domain.MessagePayload) (Dispute, error) {
	rec := b.rec
	if !rec.Actionable {
		return nil, domain.ErrNotActionable
	}
	if !b.spent.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%s dispute %s: %w: this handle already sent a message, load the dispute again",
			action, rec.ID, domain.ErrActionApplied)
	}

	payload.IdempotencyKey = uuid.NewString()
	if _, err := e.platform.CreateMessage(ctx, rec.ID, msgType, payload); err != nil {
		if !errors.Is(err, domain.ErrActionApplied) {
			// The message was not accepted; the handle may try again.
			b.spent.Store(false)
		}
		return nil, fmt.Errorf("%s dispute %s: %w", action, rec.ID, err)
	}

	next, err := e.Load(ctx, rec.ID)
	if err != nil {
		return nil, &ReloadError{DisputeID: rec.ID, Action: action, Err: err}
	}
	return next, nil
}
