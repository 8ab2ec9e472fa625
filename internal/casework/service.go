// Package casework implements the dispute use cases exposed by the API and CLI.
// This is the service/use-case layer: it loads disputes through the engine,
// checks the requested action against the loaded stage, and keeps the action
// log and the host backend up to date.
package casework

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fitstack/fitstack-disputes/internal/dispute"
	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// Service implements the dispute business logic.
// It orchestrates between the engine (fresh platform state), the action log
// (idempotency tuple) and the notifier (host backend).
type Service struct {
	engine   *dispute.Engine
	actions  domain.ActionLog
	notifier domain.StageNotifier

	batchConcurrency int
	now              func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBatchConcurrency bounds how many disputes Sweep reloads at once.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) { s.batchConcurrency = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new dispute service. notifier may be nil when no host
// callback is configured.
func NewService(
	engine *dispute.Engine,
	actions domain.ActionLog,
	notifier domain.StageNotifier,
	opts ...Option,
) *Service {
	s := &Service{
		engine:           engine,
		actions:          actions,
		notifier:         notifier,
		batchConcurrency: dispute.DefaultBatchConcurrency,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotificationResult describes what a webhook delivery led to.
type NotificationResult struct {
	DisputeID     string
	EventType     string
	Ignored       bool
	Stage         dispute.Stage
	PreviousStage string
	Changed       bool
}

// HandleNotification processes a platform webhook. The payload is only a
// trigger: the dispute is always reloaded and classified from fresh state.
func (s *Service) HandleNotification(ctx context.Context, n domain.Notification) (*NotificationResult, error) {
	res := &NotificationResult{DisputeID: n.DisputeID, EventType: n.EventType}

	// Only process chargeback notifications
	if !strings.HasPrefix(n.EventType, "chargeback.") {
		log.Printf("Ignoring webhook type: %s", n.EventType)
		res.Ignored = true
		return res, nil
	}
	if n.DisputeID == "" {
		return nil, domain.NewDisputeError(domain.ErrValidation,
			"chargeback notification has no dispute id",
			"VALIDATION_ERROR")
	}

	d, err := s.engine.Load(ctx, n.DisputeID)
	if err != nil {
		log.Printf("Failed to load dispute %s for webhook %s: %v", n.DisputeID, n.EventType, err)
		return nil, domain.NewDisputeError(err,
			"failed to load dispute for webhook processing",
			errorCode(err))
	}

	prev, changed, err := s.observe(ctx, d, n.EventType, "")
	if err != nil {
		return nil, domain.NewDisputeError(err,
			"failed to record dispute observation",
			"ACTION_LOG_ERROR")
	}

	res.Stage = d.Stage()
	res.PreviousStage = prev
	res.Changed = changed

	log.Printf("Webhook processed: dispute %s event %s, stage: %s (changed: %t)",
		n.DisputeID, n.EventType, d.Stage(), changed)

	return res, nil
}

// Inspect loads the dispute's current handle.
func (s *Service) Inspect(ctx context.Context, id string) (dispute.Dispute, error) {
	d, err := s.engine.Load(ctx, id)
	if err != nil {
		return nil, domain.NewDisputeError(err,
			fmt.Sprintf("failed to load dispute %s", id),
			errorCode(err))
	}
	return d, nil
}

// LastObservation returns what the action log holds for id.
func (s *Service) LastObservation(ctx context.Context, id string) (domain.Observation, bool, error) {
	return s.actions.Last(ctx, id)
}

// Actionable lists a merchant's open disputes that accept a response.
func (s *Service) Actionable(ctx context.Context, merchantID string) ([]dispute.Dispute, error) {
	found, err := s.engine.ActionableDisputes(ctx, merchantID)
	return s.listed(found, err, "merchant "+merchantID)
}

// ByCycle lists a merchant's disputes in cycle.
func (s *Service) ByCycle(ctx context.Context, merchantID string, cycle domain.Cycle) ([]dispute.Dispute, error) {
	found, err := s.engine.DisputesByCycle(ctx, merchantID, cycle)
	return s.listed(found, err, "merchant "+merchantID)
}

// ForTransaction lists every dispute raised against txnID.
func (s *Service) ForTransaction(ctx context.Context, txnID string) ([]dispute.Dispute, error) {
	found, err := s.engine.DisputesForTransaction(ctx, txnID)
	return s.listed(found, err, "transaction "+txnID)
}

// listed keeps the classified disputes of a search. Unclassifiable records
// are logged and skipped; any other failure is returned.
func (s *Service) listed(found []dispute.Dispute, err error, scope string) ([]dispute.Dispute, error) {
	if err == nil {
		return found, nil
	}
	if errors.Is(err, domain.ErrClassification) {
		log.Printf("Skipped unclassifiable disputes for %s: %v", scope, err)
		return found, nil
	}
	return nil, domain.NewDisputeError(err,
		fmt.Sprintf("failed to search disputes for %s", scope),
		errorCode(err))
}

type representer interface {
	Represent(ctx context.Context, ev dispute.Evidence) (dispute.Dispute, error)
}

type liabilityAcceptor interface {
	AcceptLiability(ctx context.Context) (dispute.Dispute, error)
}

type arbitrationRequester interface {
	RequestArbitration(ctx context.Context) (dispute.Dispute, error)
}

// errNotOffered signals that the loaded handle lacks the requested action.
var errNotOffered = errors.New("action not offered")

// Represent contests dispute id with ev.
func (s *Service) Represent(ctx context.Context, id string, ev dispute.Evidence) (dispute.Dispute, error) {
	return s.act(ctx, id, dispute.ActionRepresent, func(d dispute.Dispute) (dispute.Dispute, error) {
		h, ok := d.(representer)
		if !ok {
			return nil, errNotOffered
		}
		return h.Represent(ctx, ev)
	})
}

// AcceptLiability concedes dispute id.
func (s *Service) AcceptLiability(ctx context.Context, id string) (dispute.Dispute, error) {
	return s.act(ctx, id, dispute.ActionAcceptLiability, func(d dispute.Dispute) (dispute.Dispute, error) {
		h, ok := d.(liabilityAcceptor)
		if !ok {
			return nil, errNotOffered
		}
		return h.AcceptLiability(ctx)
	})
}

// RequestArbitration escalates dispute id to the card network.
func (s *Service) RequestArbitration(ctx context.Context, id string) (dispute.Dispute, error) {
	return s.act(ctx, id, dispute.ActionRequestArbitration, func(d dispute.Dispute) (dispute.Dispute, error) {
		h, ok := d.(arbitrationRequester)
		if !ok {
			return nil, errNotOffered
		}
		return h.RequestArbitration(ctx)
	})
}

// act loads id, runs perform against the fresh handle and records the outcome.
func (s *Service) act(ctx context.Context, id string, action dispute.Action, perform func(dispute.Dispute) (dispute.Dispute, error)) (dispute.Dispute, error) {
	d, err := s.engine.Load(ctx, id)
	if err != nil {
		log.Printf("Failed to load dispute %s for %s: %v", id, action, err)
		return nil, domain.NewDisputeError(err,
			fmt.Sprintf("failed to load dispute %s", id),
			errorCode(err))
	}

	next, err := perform(d)
	if errors.Is(err, errNotOffered) {
		return nil, domain.NewDisputeError(domain.ErrActionNotAllowed,
			fmt.Sprintf("%s is not available for dispute %s in stage %s", action, id, d.Stage()),
			"ACTION_NOT_ALLOWED")
	}
	if err != nil {
		if errors.Is(err, domain.ErrActionApplied) {
			// The platform took the action; remember it against the last known stage.
			if _, _, recErr := s.observe(ctx, d, "", action); recErr != nil {
				log.Printf("Failed to record %s for dispute %s: %v", action, id, recErr)
			}
		}
		log.Printf("Failed to %s dispute %s: %v", action, id, err)
		return nil, domain.NewDisputeError(err,
			fmt.Sprintf("failed to %s dispute %s", action, id),
			errorCode(err))
	}

	log.Printf("Dispute %s: %s applied, stage %s -> %s", id, action, d.Stage(), next.Stage())

	if _, _, err := s.observe(ctx, next, "", action); err != nil {
		log.Printf("Failed to record %s for dispute %s: %v", action, id, err)
	}
	return next, nil
}

// Sweep reloads every actionable dispute of a merchant, one independent
// pipeline per dispute, and records what it observed.
func (s *Service) Sweep(ctx context.Context, merchantID string) ([]dispute.BatchResult, error) {
	found, err := s.engine.ActionableDisputes(ctx, merchantID)
	if err != nil {
		if !errors.Is(err, domain.ErrClassification) {
			return nil, domain.NewDisputeError(err,
				fmt.Sprintf("failed to search disputes for merchant %s", merchantID),
				errorCode(err))
		}
		log.Printf("Sweep: skipped unclassifiable disputes for merchant %s: %v", merchantID, err)
	}

	ids := make([]string, 0, len(found))
	for _, d := range found {
		ids = append(ids, d.ID())
	}

	record := func(ctx context.Context, d dispute.Dispute) (dispute.Dispute, error) {
		if _, _, err := s.observe(ctx, d, "sweep", ""); err != nil {
			return d, err
		}
		return d, nil
	}
	results := s.engine.ProcessBatch(ctx, ids, record, dispute.BatchOptions{Concurrency: s.batchConcurrency})

	log.Printf("Sweep for merchant %s: %d disputes reloaded", merchantID, len(results))
	return results, nil
}

// observe stores the idempotency tuple for d and tells the host when the
// stage differs from the last observation. It returns the previous stage.
func (s *Service) observe(ctx context.Context, d dispute.Dispute, eventType string, action dispute.Action) (string, bool, error) {
	prev, found, err := s.actions.Last(ctx, d.ID())
	if err != nil {
		return "", false, fmt.Errorf("read observation: %w", err)
	}

	now := s.now().UTC()
	obs := domain.Observation{
		DisputeID:  d.ID(),
		Stage:      d.Stage().String(),
		ObservedAt: now,
	}
	switch {
	case action != "":
		obs.Action = string(action)
		obs.ActedAt = now
	case found:
		obs.Action = prev.Action
		obs.ActedAt = prev.ActedAt
	}

	if err := s.actions.Record(ctx, obs); err != nil {
		return "", false, fmt.Errorf("record observation: %w", err)
	}

	changed := !found || prev.Stage != obs.Stage
	if changed && s.notifier != nil {
		rec := d.Record()
		change := domain.StageChange{
			DisputeID:     d.ID(),
			PreviousStage: prev.Stage,
			Stage:         obs.Stage,
			EventType:     eventType,
			Amount:        rec.Amount,
			Currency:      rec.Currency,
			ObservedAt:    now,
		}
		if err := s.notifier.NotifyStageChange(ctx, change); err != nil {
			log.Printf("Failed to notify host about dispute %s stage %s: %v", d.ID(), obs.Stage, err)
		}
	}
	return prev.Stage, changed, nil
}

// errorCode maps an error kind to the code carried by DisputeError.
func errorCode(err error) string {
	var reload *dispute.ReloadError
	switch {
	case errors.As(err, &reload):
		return "ACTION_APPLIED_RELOAD_FAILED"
	case errors.Is(err, domain.ErrActionApplied):
		return "ACTION_APPLIED"
	case errors.Is(err, domain.ErrNotActionable):
		return "NOT_ACTIONABLE"
	case errors.Is(err, domain.ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrClassification):
		return "CLASSIFICATION_ERROR"
	case errors.Is(err, domain.ErrPlatformRejection):
		return "PLATFORM_REJECTED"
	case errors.Is(err, domain.ErrTransport):
		return "TRANSPORT_ERROR"
	case errors.Is(err, domain.ErrActionNotAllowed):
		return "ACTION_NOT_ALLOWED"
	default:
		return "INTERNAL_ERROR"
	}
}
