package dispute

import (
	"sync/atomic"
	"time"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// Dispute is the result of a load: exactly one of the handle types below.
// Branch with a type switch:
//
//	switch h := d.(type) {
//	case *dispute.FirstHandle:
//		next, err := h.Represent(ctx, ev)
//	case *dispute.PreArbitrationHandle:
//		next, err := h.RequestArbitration(ctx)
//	case *dispute.TerminalHandle:
//		log.Printf("dispute %s resolved: %s", h.ID(), h.Stage())
//	}
//
// The interface is sealed; only this package produces implementations.
type Dispute interface {
	ID() string
	Stage() Stage
	Record() domain.DisputeRecord
	isDispute()
}

// ActiveDispute is a Dispute that has not been resolved yet.
type ActiveDispute interface {
	Dispute
	isActive()
}

// base couples a record to the stage it classified into at construction.
// spent is set once a message went out through the handle.
type base struct {
	engine *Engine
	rec    domain.DisputeRecord
	stage  Stage
	spent  *atomic.Bool
}

func (b base) isDispute() {}

// ID returns the platform identifier.
func (b base) ID() string { return b.rec.ID }

// Stage returns the stage the record classified into when the handle was built.
func (b base) Stage() Stage { return b.stage }

// Record returns a copy of the wrapped snapshot.
func (b base) Record() domain.DisputeRecord { return b.rec }

// Amount returns the disputed amount in minor units.
func (b base) Amount() int64 { return b.rec.Amount }

// Currency is the ISO code of Amount.
func (b base) Currency() string { return b.rec.Currency }

// ReasonCode is the card network's reason code.
func (b base) ReasonCode() string { return b.rec.ReasonCode }

// Reason is the network's description of ReasonCode.
func (b base) Reason() string { return b.rec.Reason }

// ReplyDeadline is the zero time when the platform did not report one.
func (b base) ReplyDeadline() time.Time { return b.rec.ReplyDeadline }

// MerchantID is the Payrix merchant the dispute belongs to.
func (b base) MerchantID() string { return b.rec.MerchantID }

// TransactionID is the disputed transaction.
func (b base) TransactionID() string { return b.rec.TransactionID }

// Actionable reports whether the platform currently accepts responses.
func (b base) Actionable() bool { return b.rec.Actionable }

// ready guards transitions against handles built outside the engine.
func (b base) ready() error {
	if b.engine == nil || b.spent == nil || b.rec.ID == "" {
		return domain.ErrInvalidHandle
	}
	return nil
}

type active struct{ base }

func (active) isActive() {}

// RetrievalHandle is a dispute awaiting the issuer's first chargeback.
// No actions: wait for a notification and load again.
type RetrievalHandle struct{ active }

// RepresentmentHandle is a dispute whose rebuttal is under issuer review.
// No actions: wait for a notification and load again.
type RepresentmentHandle struct{ active }

// ArbitrationHandle is a dispute awaiting the card network's ruling.
// No actions: wait for a notification and load again.
type ArbitrationHandle struct{ active }

// respondable carries the actions shared by every stage in which the merchant
// can answer the issuer.
type respondable struct {
	active
	subject string
}

// FirstHandle is a first chargeback. Represent or accept liability.
type FirstHandle struct{ respondable }

// PreArbitrationHandle is a pre-arbitration case. Represent, accept liability,
// or escalate to network arbitration.
type PreArbitrationHandle struct{ respondable }

// SecondChargebackHandle is a second chargeback. Represent or accept liability.
type SecondChargebackHandle struct{ respondable }

// TerminalHandle is a resolved dispute (won, lost or closed). Read only.
type TerminalHandle struct{ base }

// Won reports whether the merchant won the dispute.
func (h *TerminalHandle) Won() bool { return h.stage == StageWon }

// Lost reports whether the merchant lost the dispute.
func (h *TerminalHandle) Lost() bool { return h.stage == StageLost }

const (
	subjectFirstRepresentment  = "Representment"
	subjectPreArbitration      = "Pre-Arbitration Response"
	subjectSecondRepresentment = "Second Chargeback Representment"
)

// wrap classifies rec and builds the matching handle.
func (e *Engine) wrap(rec domain.DisputeRecord) (Dispute, error) {
	stage, err := Classify(rec)
	if err != nil {
		return nil, err
	}

	b := base{engine: e, rec: rec, stage: stage, spent: new(atomic.Bool)}
	switch stage {
	case StageRetrieval:
		return &RetrievalHandle{active{b}}, nil
	case StageFirst:
		return &FirstHandle{respondable{active{b}, subjectFirstRepresentment}}, nil
	case StageRepresentment:
		return &RepresentmentHandle{active{b}}, nil
	case StagePreArbitration:
		return &PreArbitrationHandle{respondable{active{b}, subjectPreArbitration}}, nil
	case StageSecondChargeback:
		return &SecondChargebackHandle{respondable{active{b}, subjectSecondRepresentment}}, nil
	case StageArbitration:
		return &ArbitrationHandle{active{b}}, nil
	default:
		return &TerminalHandle{b}, nil
	}
}

// IsTerminal reports whether d is resolved.
func IsTerminal(d Dispute) bool {
	_, ok := d.(*TerminalHandle)
	return ok
}

// AllowedActions lists the actions d's handle type exposes.
func AllowedActions(d Dispute) []Action {
	return d.Stage().Actions()
}
