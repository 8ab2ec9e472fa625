package payrix

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// DefaultWebhookHeader carries the shared secret Payrix is configured to send.
const DefaultWebhookHeader = "X-Webhook-Secret"

// Chargeback event types delivered by Payrix.
const (
	EventChargebackCreated = "chargeback.created"
	EventChargebackOpened  = "chargeback.opened"
	EventChargebackClosed  = "chargeback.closed"
	EventChargebackWon     = "chargeback.won"
	EventChargebackLost    = "chargeback.lost"
)

// WebhookValidator authenticates webhook deliveries. Payrix sends a
// configured header/value pair instead of a signature.
type WebhookValidator struct {
	header string
	secret string
}

// NewWebhookValidator creates a validator. An empty header falls back to
// DefaultWebhookHeader.
func NewWebhookValidator(header, secret string) *WebhookValidator {
	if header == "" {
		header = DefaultWebhookHeader
	}
	return &WebhookValidator{header: header, secret: secret}
}

// Header returns the name of the header to check.
func (v *WebhookValidator) Header() string { return v.header }

// Enabled reports whether a secret is configured.
func (v *WebhookValidator) Enabled() bool { return v.secret != "" }

// Validate compares the received header value in constant time.
func (v *WebhookValidator) Validate(value string) bool {
	if v.secret == "" || value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(value), []byte(v.secret)) == 1
}

// webhookPayload is what Payrix posts. Older integrations send the event
// name under "event", newer ones under "type" with the resource in "data".
type webhookPayload struct {
	Event      string          `json:"event"`
	Type       string          `json:"type"`
	ResourceID string          `json:"id"`
	Data       json.RawMessage `json:"data"`
}

// ParseNotification decodes a webhook body. The raw resource is kept for
// auditing only.
func ParseNotification(body []byte) (domain.Notification, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.Notification{}, fmt.Errorf("%w: invalid webhook body: %v", domain.ErrValidation, err)
	}

	eventType := p.Event
	if eventType == "" {
		eventType = p.Type
	}

	id := p.ResourceID
	if len(p.Data) > 0 {
		var data struct {
			ID string `json:"id"`
		}
		// Data may be an array or a non-object; only an object carries an id.
		if err := json.Unmarshal(p.Data, &data); err == nil && data.ID != "" {
			id = data.ID
		}
	}

	if eventType == "" {
		return domain.Notification{}, fmt.Errorf("%w: webhook has no event type", domain.ErrValidation)
	}
	if IsChargebackEvent(eventType) && id == "" {
		return domain.Notification{}, fmt.Errorf("%w: chargeback webhook has no resource id", domain.ErrValidation)
	}

	return domain.Notification{
		DisputeID: id,
		EventType: eventType,
		RawRecord: p.Data,
	}, nil
}

// IsChargebackEvent reports whether eventType concerns a chargeback.
func IsChargebackEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "chargeback.")
}
