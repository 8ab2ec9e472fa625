package dispute_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitstack-disputes/internal/dispute"
	"github.com/fitstack/fitstack-disputes/internal/domain"
)

func loadFirst(t *testing.T, fp *fakePlatform, id string) *dispute.FirstHandle {
	t.Helper()
	d, err := dispute.NewEngine(fp).Load(context.Background(), id)
	require.NoError(t, err)
	h, ok := d.(*dispute.FirstHandle)
	require.True(t, ok, "expected *FirstHandle, got %T", d)
	return h
}

func TestRepresent_SendsOneMessageAndReclassifies(t *testing.T) {
	fp := newFakePlatform(record("cb-1", domain.CycleFirst, domain.StatusOpen))
	fp.onMessage = moveTo(domain.CycleFirst, domain.StatusClosed)
	h := loadFirst(t, fp, "cb-1")

	next, err := h.Represent(context.Background(), dispute.NewEvidence("Delivered and signed for.", pdfDoc("pod.pdf", 100)))
	require.NoError(t, err)

	sent := fp.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MessageRepresent, sent[0].Type)
	assert.Equal(t, "Representment", sent[0].Payload.Subject)
	assert.NotEmpty(t, sent[0].Payload.IdempotencyKey)

	// The platform closed it immediately: the result is whatever it reports.
	terminal, ok := next.(*dispute.TerminalHandle)
	require.True(t, ok, "expected *TerminalHandle, got %T", next)
	assert.Equal(t, dispute.StageClosed, terminal.Stage())
	assert.False(t, terminal.Won())
	assert.False(t, terminal.Lost())

	// The original handle is unchanged.
	assert.Equal(t, dispute.StageFirst, h.Stage())
}

func TestRepresent_EndToEnd(t *testing.T) {
	fp := newFakePlatform(record("cb-2", domain.CycleFirst, domain.StatusOpen))
	fp.onMessage = moveTo(domain.CycleRepresentment, domain.StatusOpen)
	h := loadFirst(t, fp, "cb-2")

	ev := dispute.NewEvidence("Customer received the order.").
		With(pdfDoc("invoice.pdf", 300*1024)).
		With(pdfDoc("tracking.pdf", 400*1024))

	next, err := h.Represent(context.Background(), ev)
	require.NoError(t, err)

	_, ok := next.(*dispute.RepresentmentHandle)
	assert.True(t, ok, "expected *RepresentmentHandle, got %T", next)
	require.Len(t, fp.sent(), 1)
	assert.Len(t, fp.sent()[0].Payload.Documents, 2)
}

func TestRepresent_InvalidEvidenceMakesNoCall(t *testing.T) {
	fp := newFakePlatform(record("cb-3", domain.CycleFirst, domain.StatusOpen))
	h := loadFirst(t, fp, "cb-3")

	tests := []struct {
		name    string
		ev      dispute.Evidence
		wantErr error
	}{
		{"nine documents", dispute.NewEvidence("narrative", docs(9, 10)...), dispute.ErrTooManyDocuments},
		{"oversized document", dispute.NewEvidence("narrative", pdfDoc("big.pdf", dispute.MaxDocumentSize+1)), dispute.ErrDocumentTooLarge},
		{"empty narrative", dispute.NewEvidence("", pdfDoc("a.pdf", 1)), dispute.ErrEmptyNarrative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Represent(context.Background(), tt.ev)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Empty(t, fp.sent())
}

func TestAcceptLiability(t *testing.T) {
	fp := newFakePlatform(record("cb-4", domain.CycleSecond, domain.StatusOpen))
	fp.onMessage = moveTo(domain.CycleSecond, domain.StatusLost)

	d, err := dispute.NewEngine(fp).Load(context.Background(), "cb-4")
	require.NoError(t, err)
	h, ok := d.(*dispute.SecondChargebackHandle)
	require.True(t, ok)

	next, err := h.AcceptLiability(context.Background())
	require.NoError(t, err)

	require.Len(t, fp.sent(), 1)
	assert.Equal(t, domain.MessageAcceptLiability, fp.sent()[0].Type)
	assert.Empty(t, fp.sent()[0].Payload.Documents)

	terminal, ok := next.(*dispute.TerminalHandle)
	require.True(t, ok)
	assert.True(t, terminal.Lost())
}

func TestRequestArbitration(t *testing.T) {
	fp := newFakePlatform(record("cb-5", domain.CyclePreArbitration, domain.StatusOpen))
	fp.onMessage = moveTo(domain.CycleArbitration, domain.StatusOpen)

	d, err := dispute.NewEngine(fp).Load(context.Background(), "cb-5")
	require.NoError(t, err)
	h, ok := d.(*dispute.PreArbitrationHandle)
	require.True(t, ok)

	next, err := h.RequestArbitration(context.Background())
	require.NoError(t, err)

	require.Len(t, fp.sent(), 1)
	assert.Equal(t, domain.MessageRequestArbitration, fp.sent()[0].Type)
	_, ok = next.(*dispute.ArbitrationHandle)
	assert.True(t, ok, "expected *ArbitrationHandle, got %T", next)
}

func TestPreArbitrationRepresentUsesItsSubject(t *testing.T) {
	fp := newFakePlatform(record("cb-6", domain.CycleIssuerDeclinedPreArbitration, domain.StatusOpen))
	d, err := dispute.NewEngine(fp).Load(context.Background(), "cb-6")
	require.NoError(t, err)
	h := d.(*dispute.PreArbitrationHandle)

	_, err = h.Represent(context.Background(), dispute.NewEvidence("Rebuttal."))
	require.NoError(t, err)
	assert.Equal(t, "Pre-Arbitration Response", fp.sent()[0].Payload.Subject)
}

func TestTransition_NotActionable(t *testing.T) {
	rec := record("cb-7", domain.CycleFirst, domain.StatusOpen)
	rec.Actionable = false
	fp := newFakePlatform(rec)
	h := loadFirst(t, fp, "cb-7")

	_, err := h.AcceptLiability(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotActionable)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, fp.sent())
}

func TestTransition_PropagatesPlatformErrors(t *testing.T) {
	fp := newFakePlatform(record("cb-8", domain.CycleFirst, domain.StatusOpen))
	h := loadFirst(t, fp, "cb-8")

	fp.messageErr = &domain.PlatformRejection{Code: "15", Messages: []string{"reply deadline has passed"}}
	_, err := h.AcceptLiability(context.Background())
	assert.ErrorIs(t, err, domain.ErrPlatformRejection)

	fp.messageErr = &domain.TransportError{StatusCode: 503, Retryable: true}
	_, err = h.AcceptLiability(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.True(t, domain.IsRetryable(err))

	// Still usable for a retry decision.
	assert.Equal(t, dispute.StageFirst, h.Stage())
	assert.Equal(t, "cb-8", h.ID())
}

func TestTransition_ReloadFailure(t *testing.T) {
	fp := newFakePlatform(record("cb-9", domain.CycleFirst, domain.StatusOpen))
	h := loadFirst(t, fp, "cb-9")
	fp.failFetchAfterMessage = &domain.TransportError{StatusCode: 503, Retryable: true}

	_, err := h.AcceptLiability(context.Background())
	require.Error(t, err)

	var re *dispute.ReloadError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, dispute.ActionAcceptLiability, re.Action)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, domain.ErrActionApplied)
	// The cause was retryable, the outcome is not: the message went out.
	assert.False(t, domain.IsRetryable(err))

	// Calling again on the same handle sends nothing.
	_, err = h.AcceptLiability(context.Background())
	assert.ErrorIs(t, err, domain.ErrActionApplied)
	assert.Len(t, fp.sent(), 1)
}

func TestTransition_HandleSendsOneMessage(t *testing.T) {
	fp := newFakePlatform(record("cb-10", domain.CycleFirst, domain.StatusOpen))
	h := loadFirst(t, fp, "cb-10")

	_, err := h.AcceptLiability(context.Background())
	require.NoError(t, err)

	_, err = h.Represent(context.Background(), dispute.NewEvidence("Changed my mind."))
	assert.ErrorIs(t, err, domain.ErrActionApplied)
	assert.False(t, domain.IsRetryable(err))
	assert.Len(t, fp.sent(), 1)

	// A fresh load gets a fresh handle.
	again := loadFirst(t, fp, "cb-10")
	_, err = again.AcceptLiability(context.Background())
	require.NoError(t, err)
	assert.Len(t, fp.sent(), 2)
}

func TestTransition_IncompleteMessageIsNotRetryable(t *testing.T) {
	fp := newFakePlatform(record("cb-11", domain.CycleFirst, domain.StatusOpen))
	h := loadFirst(t, fp, "cb-11")
	fp.messageErr = &domain.IncompleteMessageError{
		MessageID: "msg-1",
		Document:  "pod.pdf",
		Err:       &domain.TransportError{StatusCode: 503, Retryable: true},
	}

	_, err := h.Represent(context.Background(), dispute.NewEvidence("Delivered.", pdfDoc("pod.pdf", 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrActionApplied)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.False(t, domain.IsRetryable(err))

	fp.messageErr = nil
	_, err = h.Represent(context.Background(), dispute.NewEvidence("Delivered.", pdfDoc("pod.pdf", 10)))
	assert.ErrorIs(t, err, domain.ErrActionApplied)
	assert.Empty(t, fp.sent())
}

func TestTransition_ZeroHandle(t *testing.T) {
	var h dispute.FirstHandle
	_, err := h.Represent(context.Background(), dispute.NewEvidence("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)

	var p dispute.PreArbitrationHandle
	_, err = p.RequestArbitration(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)
}
