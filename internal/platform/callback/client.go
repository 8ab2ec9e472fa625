// Package callback implements domain.StageNotifier by posting observed stage
// changes to the host backend's internal API.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// Client implements domain.StageNotifier by making HTTP requests to the host API.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new callback client posting to url.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// stageChangeRequest represents the JSON request sent to the host.
type stageChangeRequest struct {
	DisputeID     string `json:"dispute_id"`
	PreviousStage string `json:"previous_stage,omitempty"`
	Stage         string `json:"stage"`
	EventType     string `json:"event_type,omitempty"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency,omitempty"`
	ObservedAt    string `json:"observed_at"`
}

// NotifyStageChange tells the host a reload observed a new stage.
// The host decides what to do with it (alerts, ledger entries, ...).
func (c *Client) NotifyStageChange(ctx context.Context, change domain.StageChange) error {
	payload := stageChangeRequest{
		DisputeID:     change.DisputeID,
		PreviousStage: change.PreviousStage,
		Stage:         change.Stage,
		EventType:     change.EventType,
		Amount:        change.Amount,
		Currency:      change.Currency,
		ObservedAt:    change.ObservedAt.UTC().Format(time.RFC3339),
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Internal-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Retryable: true, Message: "host callback failed", Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated, resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusAccepted:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &domain.TransportError{StatusCode: resp.StatusCode, Message: "authentication failed with host API"}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &domain.TransportError{
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500,
			Message:    fmt.Sprintf("host API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
}
