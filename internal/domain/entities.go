// Package domain contains the core business entities and interfaces for the dispute service.
// This is the innermost layer of the Clean Architecture - it has no dependencies on
// external frameworks or infrastructure.
package domain

import (
	"encoding/json"
	"time"
)

// Cycle is the dispute iteration a chargeback record currently occupies,
// as reported by the platform.
type Cycle string

const (
	CycleRetrieval      Cycle = "retrieval"
	CycleFirst          Cycle = "first"
	CycleRepresentment  Cycle = "representment"
	CyclePreArbitration Cycle = "preArbitration"
	CycleSecond         Cycle = "secondChargeback"
	CycleArbitration    Cycle = "arbitration"

	// Pre-arbitration sub-cycles reported by some networks.
	CycleIssuerDeclinedPreArbitration   Cycle = "issuerDeclinedPreArbitration"
	CycleResponseToIssuerPreArbitration Cycle = "responseToIssuerPreArbitration"
	CycleMerchantDeclinedPreArbitration Cycle = "merchantDeclinedPreArbitration"

	// Compliance cases are adjudicated by the network like arbitration.
	CyclePreCompliance Cycle = "preCompliance"
	CycleCompliance    Cycle = "compliance"

	// Outcome cycles.
	CycleArbitrationWon   Cycle = "arbitrationWon"
	CycleArbitrationLost  Cycle = "arbitrationLost"
	CycleArbitrationSplit Cycle = "arbitrationSplit"
	CycleReversal         Cycle = "reversal"
)

// Status is the platform's open/closed flag for a dispute.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
	StatusWon    Status = "won"
	StatusLost   Status = "lost"
)

// DisputeRecord is a platform-owned snapshot of a chargeback.
// It is never mutated locally; callers re-fetch it for every decision.
type DisputeRecord struct {
	ID            string    `json:"id"`
	MerchantID    string    `json:"merchant_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Cycle         Cycle     `json:"cycle"`
	Status        Status    `json:"status"`
	Amount        int64     `json:"amount"` // minor units (cents)
	Currency      string    `json:"currency,omitempty"`
	ReasonCode    string    `json:"reason_code,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ReplyDeadline time.Time `json:"reply_deadline,omitempty"`
	Actionable    bool      `json:"actionable"`
	Created       time.Time `json:"created,omitempty"`
	Modified      time.Time `json:"modified,omitempty"`
}

// MessageType identifies the kind of chargeback message sent to the platform.
type MessageType string

const (
	MessageRepresent          MessageType = "represent"
	MessageAcceptLiability    MessageType = "acceptLiability"
	MessageRequestArbitration MessageType = "requestArbitration"
)

// DocumentType is the platform's coarse classification of an evidence file.
type DocumentType string

const (
	DocumentPDF   DocumentType = "pdf"
	DocumentTIFF  DocumentType = "tiff"
	DocumentPNG   DocumentType = "png"
	DocumentJPG   DocumentType = "jpg"
	DocumentImage DocumentType = "image"
	DocumentText  DocumentType = "text"
	DocumentOther DocumentType = "other"
)

// EncodedDocument is an evidence file ready to be sent: content is base64 text.
type EncodedDocument struct {
	Name      string       `json:"name"`
	MediaType string       `json:"media_type"`
	Type      DocumentType `json:"type"`
	Size      int          `json:"size"`
	Data      string       `json:"data"`
}

// MessagePayload is the body of a chargeback message.
type MessagePayload struct {
	Subject   string            `json:"subject"`
	Message   string            `json:"message"`
	Documents []EncodedDocument `json:"documents,omitempty"`
	// IdempotencyKey lets the transport deduplicate its own retries.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// MessageRecord is the platform's acknowledgment of a created message.
type MessageRecord struct {
	ID        string      `json:"id"`
	DisputeID string      `json:"dispute_id"`
	Type      MessageType `json:"type"`
	Subject   string      `json:"subject,omitempty"`
	Created   time.Time   `json:"created,omitempty"`
}

// NewDocument describes a document upload attached to a dispute and,
// optionally, to one of its messages.
type NewDocument struct {
	MessageID string `json:"message_id,omitempty"`
	EncodedDocument
}

// DocumentRecord is the platform's acknowledgment of an uploaded document.
type DocumentRecord struct {
	ID        string       `json:"id"`
	DisputeID string       `json:"dispute_id"`
	MessageID string       `json:"message_id,omitempty"`
	Name      string       `json:"name"`
	Type      DocumentType `json:"type"`
}

// SearchFilter narrows a bulk dispute search. Empty fields are ignored.
type SearchFilter struct {
	MerchantID     string
	TransactionID  string
	Cycle          Cycle
	Status         Status
	ActionableOnly bool
}

// Notification is an event delivered by the platform's webhook.
// RawRecord is kept for auditing only; it is never used for classification.
type Notification struct {
	DisputeID string          `json:"dispute_id"`
	EventType string          `json:"event_type"`
	RawRecord json.RawMessage `json:"raw_record,omitempty"`
}

// Observation is the only dispute state a host persists between runs.
type Observation struct {
	DisputeID  string    `json:"dispute_id"`
	Stage      string    `json:"stage"`
	Action     string    `json:"action,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	ActedAt    time.Time `json:"acted_at,omitempty"`
}

// StageChange is sent to the host backend when a reload observes a new stage.
type StageChange struct {
	DisputeID     string    `json:"dispute_id"`
	PreviousStage string    `json:"previous_stage,omitempty"`
	Stage         string    `json:"stage"`
	EventType     string    `json:"event_type,omitempty"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency,omitempty"`
	ObservedAt    time.Time `json:"observed_at"`
}
