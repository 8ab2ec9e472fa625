package dispute_test

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitstack-disputes/internal/dispute"
	"github.com/fitstack/fitstack-disputes/internal/domain"
)

func TestLoad_HandleTypes(t *testing.T) {
	tests := []struct {
		cycle  domain.Cycle
		status domain.Status
		check  func(dispute.Dispute) bool
	}{
		{domain.CycleRetrieval, domain.StatusOpen, func(d dispute.Dispute) bool { _, ok := d.(*dispute.RetrievalHandle); return ok }},
		{domain.CycleFirst, domain.StatusOpen, func(d dispute.Dispute) bool { _, ok := d.(*dispute.FirstHandle); return ok }},
		{domain.CycleRepresentment, domain.StatusOpen, func(d dispute.Dispute) bool { _, ok := d.(*dispute.RepresentmentHandle); return ok }},
		{domain.CyclePreArbitration, domain.StatusOpen, func(d dispute.Dispute) bool { _, ok := d.(*dispute.PreArbitrationHandle); return ok }},
		{domain.CycleSecond, domain.StatusOpen, func(d dispute.Dispute) bool { _, ok := d.(*dispute.SecondChargebackHandle); return ok }},
		{domain.CycleArbitration, domain.StatusOpen, func(d dispute.Dispute) bool { _, ok := d.(*dispute.ArbitrationHandle); return ok }},
		{domain.CycleFirst, domain.StatusWon, func(d dispute.Dispute) bool { _, ok := d.(*dispute.TerminalHandle); return ok }},
	}

	for _, tt := range tests {
		t.Run(string(tt.cycle)+"/"+string(tt.status), func(t *testing.T) {
			fp := newFakePlatform(record("cb-1", tt.cycle, tt.status))
			d, err := dispute.NewEngine(fp).Load(context.Background(), "cb-1")
			require.NoError(t, err)
			assert.True(t, tt.check(d), "unexpected handle %T", d)
			assert.Equal(t, tt.status != domain.StatusOpen, dispute.IsTerminal(d))
			_, active := d.(dispute.ActiveDispute)
			assert.Equal(t, !dispute.IsTerminal(d), active)
		})
	}
}

func TestLoad_IsIdempotent(t *testing.T) {
	fp := newFakePlatform(record("cb-1", domain.CyclePreArbitration, domain.StatusOpen))
	engine := dispute.NewEngine(fp)

	a, err := engine.Load(context.Background(), "cb-1")
	require.NoError(t, err)
	b, err := engine.Load(context.Background(), "cb-1")
	require.NoError(t, err)

	assert.Equal(t, a.Stage(), b.Stage())
	assert.Equal(t, a.Record(), b.Record())
	assert.Equal(t, dispute.AllowedActions(a), dispute.AllowedActions(b))
	assert.Empty(t, fp.sent())
}

func TestLoad_Accessors(t *testing.T) {
	fp := newFakePlatform(record("cb-1", domain.CycleFirst, domain.StatusOpen))
	h := loadFirst(t, fp, "cb-1")

	assert.Equal(t, "cb-1", h.ID())
	assert.Equal(t, int64(4999), h.Amount())
	assert.Equal(t, "USD", h.Currency())
	assert.Equal(t, "4837", h.ReasonCode())
	assert.Equal(t, "m-1", h.MerchantID())
	assert.True(t, h.Actionable())
	assert.True(t, h.ReplyDeadline().IsZero())
}

func TestLoad_Errors(t *testing.T) {
	engine := dispute.NewEngine(newFakePlatform(record("cb-bad", "mystery", domain.StatusOpen)))

	_, err := engine.Load(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = engine.Load(context.Background(), "cb-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = engine.Load(context.Background(), "cb-bad")
	assert.ErrorIs(t, err, domain.ErrClassification)
}

func TestQueries(t *testing.T) {
	notActionable := record("cb-3", domain.CycleFirst, domain.StatusOpen)
	notActionable.Actionable = false
	withTxn := record("cb-4", domain.CycleRepresentment, domain.StatusOpen)
	withTxn.TransactionID = "txn-1"
	unknown := record("cb-5", "mystery", domain.StatusOpen)
	unknown.TransactionID = "txn-1"

	fp := newFakePlatform(
		record("cb-1", domain.CycleFirst, domain.StatusOpen),
		record("cb-2", domain.CyclePreArbitration, domain.StatusOpen),
		notActionable,
		withTxn,
		unknown,
	)
	engine := dispute.NewEngine(fp)
	ctx := context.Background()

	actionable, err := engine.ActionableDisputes(ctx, "m-1")
	// The unknown record is open and actionable too, so it is reported.
	assert.ErrorIs(t, err, domain.ErrClassification)
	assert.ElementsMatch(t, []string{"cb-1", "cb-2", "cb-4"}, ids(actionable))

	byCycle, err := engine.DisputesByCycle(ctx, "m-1", domain.CycleFirst)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cb-1", "cb-3"}, ids(byCycle))

	forTxn, err := engine.DisputesForTransaction(ctx, "txn-1")
	var ce *dispute.ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cb-5", ce.DisputeID)
	assert.Equal(t, []string{"cb-4"}, ids(forTxn))

	_, err = engine.DisputesForTransaction(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	fp.searchErr = &domain.TransportError{StatusCode: 503, Retryable: true}
	_, err = engine.ActionableDisputes(ctx, "m-1")
	assert.True(t, domain.IsRetryable(err))
}

func ids(ds []dispute.Dispute) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID())
	}
	sort.Strings(out)
	return out
}

func TestProcessBatch_IndependentPipelines(t *testing.T) {
	fp := newFakePlatform(
		record("cb-1", domain.CycleFirst, domain.StatusOpen),
		record("cb-2", domain.CycleSecond, domain.StatusOpen),
		record("cb-3", domain.CycleRepresentment, domain.StatusOpen),
	)
	fp.onMessage = moveTo(domain.CycleFirst, domain.StatusLost)
	engine := dispute.NewEngine(fp)

	var decided atomic.Int32
	decide := func(ctx context.Context, d dispute.Dispute) (dispute.Dispute, error) {
		decided.Add(1)
		switch h := d.(type) {
		case *dispute.FirstHandle:
			return h.AcceptLiability(ctx)
		case *dispute.SecondChargebackHandle:
			return nil, errors.New("merchant has not decided")
		default:
			return d, nil
		}
	}

	results := engine.ProcessBatch(context.Background(), []string{"cb-1", "cb-missing", "cb-2", "cb-3"}, decide, dispute.BatchOptions{Concurrency: 2})
	require.Len(t, results, 4)

	assert.Equal(t, "cb-1", results[0].ID)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, dispute.StageLost, results[0].Stage)

	assert.Equal(t, "cb-missing", results[1].ID)
	assert.ErrorIs(t, results[1].Err, domain.ErrNotFound)
	assert.Equal(t, dispute.Stage(0), results[1].Stage)

	assert.Error(t, results[2].Err)
	assert.Equal(t, dispute.StageSecondChargeback, results[2].Stage)

	assert.NoError(t, results[3].Err)
	assert.Equal(t, dispute.StageRepresentment, results[3].Stage)

	assert.Equal(t, int32(3), decided.Load())
}

func TestProcessBatch_LoadOnly(t *testing.T) {
	fp := newFakePlatform(record("cb-1", domain.CycleArbitration, domain.StatusOpen))
	results := dispute.NewEngine(fp).ProcessBatch(context.Background(), []string{"cb-1"}, nil, dispute.BatchOptions{})

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, dispute.StageArbitration, results[0].Stage)
	assert.Empty(t, fp.sent())
}
