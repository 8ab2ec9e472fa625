// Package api contains the HTTP handlers and routing for the dispute service.
package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fitstack/fitstack-disputes/internal/casework"
	"github.com/fitstack/fitstack-disputes/internal/dispute"
	"github.com/fitstack/fitstack-disputes/internal/domain"
	"github.com/fitstack/fitstack-disputes/internal/platform/payrix"
)

// Handler contains the HTTP handlers for the dispute API.
type Handler struct {
	disputes *casework.Service
}

// NewHandler creates a new API handler with the dispute service.
func NewHandler(disputes *casework.Service) *Handler {
	return &Handler{
		disputes: disputes,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// DisputeView is the JSON shape of a loaded dispute.
type DisputeView struct {
	ID             string     `json:"id"`
	Stage          string     `json:"stage"`
	Terminal       bool       `json:"terminal"`
	AllowedActions []string   `json:"allowed_actions"`
	MerchantID     string     `json:"merchant_id,omitempty"`
	TransactionID  string     `json:"transaction_id,omitempty"`
	Cycle          string     `json:"cycle"`
	Status         string     `json:"status"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency,omitempty"`
	ReasonCode     string     `json:"reason_code,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	ReplyDeadline  *time.Time `json:"reply_deadline,omitempty"`
	Actionable     bool       `json:"actionable"`
}

func newDisputeView(d dispute.Dispute) DisputeView {
	rec := d.Record()
	actions := make([]string, 0, 2)
	for _, a := range dispute.AllowedActions(d) {
		actions = append(actions, string(a))
	}
	v := DisputeView{
		ID:             d.ID(),
		Stage:          d.Stage().String(),
		Terminal:       dispute.IsTerminal(d),
		AllowedActions: actions,
		MerchantID:     rec.MerchantID,
		TransactionID:  rec.TransactionID,
		Cycle:          string(rec.Cycle),
		Status:         string(rec.Status),
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		ReasonCode:     rec.ReasonCode,
		Reason:         rec.Reason,
		Actionable:     rec.Actionable,
	}
	if !rec.ReplyDeadline.IsZero() {
		deadline := rec.ReplyDeadline
		v.ReplyDeadline = &deadline
	}
	return v
}

// DisputeResponse wraps a single dispute.
type DisputeResponse struct {
	Success bool        `json:"success"`
	Dispute DisputeView `json:"dispute"`
}

// DisputeListResponse wraps a search result.
type DisputeListResponse struct {
	Success  bool          `json:"success"`
	Disputes []DisputeView `json:"disputes"`
}

// GetDispute handles GET /api/v1/disputes/:id
// Loads the dispute fresh from Payrix and reports its stage.
func (h *Handler) GetDispute(c *gin.Context) {
	d, err := h.disputes.Inspect(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, DisputeResponse{Success: true, Dispute: newDisputeView(d)})
}

// ListDisputes handles GET /api/v1/disputes
// ?txn= lists a transaction's disputes, ?merchant=&cycle= one cycle of a
// merchant, and ?merchant= alone the merchant's actionable disputes.
func (h *Handler) ListDisputes(c *gin.Context) {
	ctx := c.Request.Context()
	merchant := c.Query("merchant")
	cycle := c.Query("cycle")
	txn := c.Query("txn")

	var (
		found []dispute.Dispute
		err   error
	)
	switch {
	case txn != "":
		found, err = h.disputes.ForTransaction(ctx, txn)
	case merchant != "" && cycle != "":
		found, err = h.disputes.ByCycle(ctx, merchant, domain.Cycle(cycle))
	case merchant != "":
		found, err = h.disputes.Actionable(ctx, merchant)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "merchant or txn query parameter is required",
			Code:    "VALIDATION_ERROR",
		})
		return
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	views := make([]DisputeView, 0, len(found))
	for _, d := range found {
		views = append(views, newDisputeView(d))
	}
	c.JSON(http.StatusOK, DisputeListResponse{Success: true, Disputes: views})
}

// DocumentRequest is one evidence file. Data is plain base64 or a data URL.
type DocumentRequest struct {
	Name      string `json:"name" binding:"required"`
	MediaType string `json:"media_type"`
	Data      string `json:"data" binding:"required"`
}

// RepresentRequest represents the JSON body for the represent endpoint.
type RepresentRequest struct {
	Narrative string            `json:"narrative" binding:"required"`
	Documents []DocumentRequest `json:"documents"`
}

// Represent handles POST /api/v1/disputes/:id/represent
// Contests the chargeback with the submitted evidence.
func (h *Handler) Represent(c *gin.Context) {
	var req RepresentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "Invalid request body: " + err.Error(),
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	ev := dispute.NewEvidence(req.Narrative)
	for _, dr := range req.Documents {
		doc, err := dispute.DocumentFromBase64(dr.Name, dr.Data)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		if dr.MediaType != "" {
			doc.MediaType = dr.MediaType
		}
		ev = ev.With(doc)
	}

	next, err := h.disputes.Represent(c.Request.Context(), c.Param("id"), ev)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, DisputeResponse{Success: true, Dispute: newDisputeView(next)})
}

// AcceptLiability handles POST /api/v1/disputes/:id/accept-liability
func (h *Handler) AcceptLiability(c *gin.Context) {
	next, err := h.disputes.AcceptLiability(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, DisputeResponse{Success: true, Dispute: newDisputeView(next)})
}

// RequestArbitration handles POST /api/v1/disputes/:id/arbitration
func (h *Handler) RequestArbitration(c *gin.Context) {
	next, err := h.disputes.RequestArbitration(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, DisputeResponse{Success: true, Dispute: newDisputeView(next)})
}

// HandleWebhook handles POST /webhooks/payrix
// Receives notifications from Payrix and reloads the affected dispute.
func (h *Handler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("Webhook read error: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	notification, err := payrix.ParseNotification(body)
	if err != nil {
		// Payrix might send different formats, log and accept
		log.Printf("Webhook parsing error: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	res, err := h.disputes.HandleNotification(c.Request.Context(), notification)
	if err != nil {
		log.Printf("Webhook processing error for dispute %s: %v", notification.DisputeID, err)
		// Still return 200 to prevent Payrix from retrying
		c.JSON(http.StatusOK, gin.H{"status": "processed_with_error"})
		return
	}
	if res.Ignored {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "processed",
		"stage":   res.Stage.String(),
		"changed": res.Changed,
	})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "fitstack-disputes",
	})
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	var transportErr *domain.TransportError

	switch {
	case errors.Is(err, domain.ErrActionApplied):
		// The platform accepted the action; a retry would send a second message.
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrActionNotAllowed), errors.Is(err, domain.ErrNotActionable):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrPlatformRejection):
		statusCode = http.StatusUnprocessableEntity
	case errors.As(err, &transportErr):
		statusCode = http.StatusBadGateway
		if transportErr.Retryable {
			statusCode = http.StatusServiceUnavailable
		}
	}

	var disputeErr *domain.DisputeError
	if errors.As(err, &disputeErr) {
		c.JSON(statusCode, ErrorResponse{
			Success: false,
			Error:   disputeErr.Error(),
			Code:    disputeErr.Code,
		})
		return
	}

	if statusCode == http.StatusBadRequest {
		c.JSON(statusCode, ErrorResponse{
			Success: false,
			Error:   err.Error(),
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	// Generic error
	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Error:   "Internal server error",
		Code:    "INTERNAL_ERROR",
	})
}
