// Package domain contains the core business entities and interfaces for the dispute service.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors. Every failure surfaced by the service wraps exactly one of these,
// so callers branch with errors.Is.
var (
	// ErrClassification is returned when a (cycle, status) pair is not recognized.
	ErrClassification = errors.New("unrecognized dispute state")

	// ErrValidation is returned when input is rejected before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrTransport is returned when the platform could not be reached or answered
	// with an HTTP-level failure.
	ErrTransport = errors.New("transport error")

	// ErrPlatformRejection is returned when the platform received a call and refused it.
	ErrPlatformRejection = errors.New("rejected by platform")

	// ErrNotFound is returned when the platform has no dispute with the given id.
	ErrNotFound = errors.New("dispute not found")

	// ErrActionNotAllowed is returned when an action is requested for a dispute whose
	// current stage does not offer it.
	ErrActionNotAllowed = errors.New("action not allowed in current stage")

	// ErrInvalidHandle is returned when a transition is invoked on a handle that
	// was not produced by the engine.
	ErrInvalidHandle = errors.New("dispute handle was not produced by a load")

	// ErrWebhookValidationFailed is returned when webhook authentication fails.
	ErrWebhookValidationFailed = errors.New("webhook validation failed")

	// ErrActionApplied marks a failure that happened after the platform accepted
	// a state-changing message. Repeating the call would send a second message.
	ErrActionApplied = errors.New("action already applied")
)

// ErrNotActionable is returned when the platform marks the dispute as not accepting
// responses. It is a validation failure: no call is made.
var ErrNotActionable = fmt.Errorf("%w: dispute is not currently actionable", ErrValidation)

// DisputeError wraps a domain error with additional context.
type DisputeError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface.
func (e *DisputeError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with DisputeError.
func (e *DisputeError) Unwrap() error {
	return e.Err
}

// NewDisputeError creates a new DisputeError with the given error and message.
func NewDisputeError(err error, message, code string) *DisputeError {
	return &DisputeError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// TransportError is a network or HTTP failure talking to the platform.
// Retryable marks outcomes a transport-level retry could fix (rate limiting,
// unavailability, dropped connections).
type TransportError struct {
	StatusCode int
	Retryable  bool
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the ErrTransport kind and the underlying cause.
func (e *TransportError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrTransport, e.Cause}
	}
	return []error{ErrTransport}
}

// PlatformRejection carries the platform's own error messages for a refused call,
// e.g. a reply deadline that has already passed.
type PlatformRejection struct {
	Code     string
	Messages []string
}

func (e *PlatformRejection) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if e.Code != "" {
		return fmt.Sprintf("rejected by platform [%s]: %s", e.Code, msg)
	}
	return "rejected by platform: " + msg
}

func (e *PlatformRejection) Unwrap() error {
	return ErrPlatformRejection
}

// IncompleteMessageError is returned when a chargeback message was created but
// one of its documents could not be attached.
type IncompleteMessageError struct {
	MessageID string
	Document  string
	Err       error
}

func (e *IncompleteMessageError) Error() string {
	return fmt.Sprintf("message %s created, upload of document %s failed: %v", e.MessageID, e.Document, e.Err)
}

// Unwrap exposes ErrActionApplied and the upload failure.
func (e *IncompleteMessageError) Unwrap() []error {
	return []error{ErrActionApplied, e.Err}
}

// IsRetryable reports whether err is a transport failure worth retrying.
// Everything else (validation, classification, rejection) needs a caller decision.
// A failure after an applied action is never retryable, whatever caused it.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrActionApplied) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}
