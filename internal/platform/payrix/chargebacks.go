package payrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// Compile-time check that Client satisfies the port.
var _ domain.DisputePlatform = (*Client)(nil)

const (
	pathChargebacks        = "chargebacks"
	pathChargebackMessages = "chargebackMessages"
	pathChargebackDocs     = "chargebackDocuments"

	timestampLayout = "2006-01-02 15:04:05.000"
	dateLayout      = "20060102"
)

// chargeback is the wire form of a Payrix chargeback.
type chargeback struct {
	ID         string   `json:"id"`
	Merchant   string   `json:"merchant"`
	Txn        string   `json:"txn"`
	Cycle      string   `json:"cycle"`
	Status     string   `json:"status"`
	Total      int64    `json:"total"`
	Amount     int64    `json:"amount"`
	Currency   string   `json:"currency"`
	ReasonCode string   `json:"reasonCode"`
	Reason     string   `json:"reason"`
	Reply      flexDate `json:"reply"`
	Actionable flexBool `json:"actionable"`
	Created    string   `json:"created"`
	Modified   string   `json:"modified"`
}

func (cb chargeback) toRecord() domain.DisputeRecord {
	amount := cb.Total
	if amount == 0 {
		amount = cb.Amount
	}
	return domain.DisputeRecord{
		ID:            cb.ID,
		MerchantID:    cb.Merchant,
		TransactionID: cb.Txn,
		Cycle:         domain.Cycle(cb.Cycle),
		Status:        domain.Status(cb.Status),
		Amount:        amount,
		Currency:      cb.Currency,
		ReasonCode:    cb.ReasonCode,
		Reason:        cb.Reason,
		ReplyDeadline: time.Time(cb.Reply),
		Actionable:    bool(cb.Actionable),
		Created:       parseTimestamp(cb.Created),
		Modified:      parseTimestamp(cb.Modified),
	}
}

type chargebackMessage struct {
	ID         string `json:"id,omitempty"`
	Chargeback string `json:"chargeback"`
	Type       string `json:"type,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Message    string `json:"message,omitempty"`
	Created    string `json:"created,omitempty"`
}

type chargebackDocument struct {
	ID                string `json:"id,omitempty"`
	Chargeback        string `json:"chargeback"`
	ChargebackMessage string `json:"chargebackMessage,omitempty"`
	Name              string `json:"name,omitempty"`
	Type              string `json:"type,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
	Size              int    `json:"size,omitempty"`
	Data              string `json:"data,omitempty"`
}

// FetchDispute implements domain.DisputePlatform.
func (c *Client) FetchDispute(ctx context.Context, id string) (*domain.DisputeRecord, error) {
	env, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   pathChargebacks + "/" + url.PathEscape(id),
	})
	if err != nil {
		return nil, err
	}

	var cb chargeback
	if ok, err := first(env, &cb); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("payrix chargeback %s: %w", id, domain.ErrNotFound)
	}

	rec := cb.toRecord()
	return &rec, nil
}

// CreateMessage posts one chargeback message, then uploads each document in
// the payload bound to the new message.
func (c *Client) CreateMessage(ctx context.Context, disputeID string, msgType domain.MessageType, payload domain.MessagePayload) (*domain.MessageRecord, error) {
	req := request{
		method: http.MethodPost,
		path:   pathChargebackMessages,
		body: chargebackMessage{
			Chargeback: disputeID,
			Type:       string(msgType),
			Subject:    payload.Subject,
			Message:    payload.Message,
		},
	}
	if payload.IdempotencyKey != "" {
		req.headers = map[string]string{"Idempotency-Key": payload.IdempotencyKey}
	}

	env, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var msg chargebackMessage
	if ok, err := first(env, &msg); err != nil {
		return nil, err
	} else if !ok {
		return nil, &domain.TransportError{Message: "no message returned by create"}
	}

	for _, doc := range payload.Documents {
		if _, err := c.CreateDocument(ctx, disputeID, domain.NewDocument{MessageID: msg.ID, EncodedDocument: doc}); err != nil {
			log.Printf("Failed to upload document %s for chargeback message %s: %v", doc.Name, msg.ID, err)
			return nil, &domain.IncompleteMessageError{MessageID: msg.ID, Document: doc.Name, Err: err}
		}
	}

	return &domain.MessageRecord{
		ID:        msg.ID,
		DisputeID: disputeID,
		Type:      msgType,
		Subject:   payload.Subject,
		Created:   parseTimestamp(msg.Created),
	}, nil
}

// CreateDocument implements domain.DisputePlatform.
func (c *Client) CreateDocument(ctx context.Context, disputeID string, doc domain.NewDocument) (*domain.DocumentRecord, error) {
	env, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   pathChargebackDocs,
		body: chargebackDocument{
			Chargeback:        disputeID,
			ChargebackMessage: doc.MessageID,
			Name:              doc.Name,
			Type:              string(doc.Type),
			MimeType:          doc.MediaType,
			Size:              doc.Size,
			Data:              doc.Data,
		},
	})
	if err != nil {
		return nil, err
	}

	var out chargebackDocument
	if ok, err := first(env, &out); err != nil {
		return nil, err
	} else if !ok {
		return nil, &domain.TransportError{Message: "no document returned by create"}
	}

	return &domain.DocumentRecord{
		ID:        out.ID,
		DisputeID: disputeID,
		MessageID: doc.MessageID,
		Name:      doc.Name,
		Type:      doc.Type,
	}, nil
}

// SearchDisputes implements domain.DisputePlatform. It follows pagination
// until the platform reports no more pages.
func (c *Client) SearchDisputes(ctx context.Context, filter domain.SearchFilter) ([]domain.DisputeRecord, error) {
	search := SearchQuery(filter)

	var out []domain.DisputeRecord
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page[number]", strconv.Itoa(page))
		q.Set("page[limit]", strconv.Itoa(c.pageLimit))

		env, err := c.do(ctx, request{
			method: http.MethodGet,
			path:   pathChargebacks,
			query:  q,
			search: search,
		})
		if err != nil {
			return nil, err
		}

		data := env.data()
		for _, raw := range data {
			var cb chargeback
			if err := json.Unmarshal(raw, &cb); err != nil {
				return nil, &domain.TransportError{Message: "failed to decode chargeback", Cause: err}
			}
			out = append(out, cb.toRecord())
		}

		if !env.page().HasMore || len(data) == 0 {
			return out, nil
		}
	}
}

// SearchQuery renders filter in Payrix search-header syntax,
// e.g. "merchant[equals]=m1&status[equals]=open&actionable[equals]=1".
func SearchQuery(filter domain.SearchFilter) string {
	var parts []string
	add := func(field, value string) {
		if value != "" {
			parts = append(parts, field+"[equals]="+value)
		}
	}
	add("merchant", filter.MerchantID)
	add("txn", filter.TransactionID)
	add("cycle", string(filter.Cycle))
	add("status", string(filter.Status))
	if filter.ActionableOnly {
		add("actionable", "1")
	}
	return strings.Join(parts, "&")
}

// first decodes the first data item into v. It reports false when the
// response carried no data.
func first(env *envelope, v interface{}) (bool, error) {
	data := env.data()
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data[0], v); err != nil {
		return false, &domain.TransportError{Message: "failed to decode response data", Cause: err}
	}
	return true, nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{timestampLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// flexBool accepts true/false, 0/1 and "0"/"1".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch s {
	case "true", "1":
		*b = true
	case "false", "0", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// flexDate accepts a YYYYMMDD date as a number or a string.
type flexDate time.Time

func (d *flexDate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" || s == "0" {
		*d = flexDate(time.Time{})
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %s: %w", data, err)
	}
	*d = flexDate(t)
	return nil
}
