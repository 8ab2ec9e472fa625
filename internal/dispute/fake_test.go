package dispute_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

type sentMessage struct {
	DisputeID string
	Type      domain.MessageType
	Payload   domain.MessagePayload
}

// fakePlatform is an in-memory DisputePlatform. onMessage, when set, runs
// after each accepted message and may rewrite the stored record to simulate
// the platform moving the dispute.
type fakePlatform struct {
	mu        sync.Mutex
	records   map[string]domain.DisputeRecord
	messages  []sentMessage
	fetches   map[string]int
	onMessage func(rec *domain.DisputeRecord, msgType domain.MessageType)

	fetchErr   error
	messageErr error
	searchErr  error
	// failFetchAfterMessage makes every fetch following a message fail.
	failFetchAfterMessage error
}

func newFakePlatform(records ...domain.DisputeRecord) *fakePlatform {
	f := &fakePlatform{
		records: make(map[string]domain.DisputeRecord),
		fetches: make(map[string]int),
	}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakePlatform) FetchDispute(_ context.Context, id string) (*domain.DisputeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[id]++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.failFetchAfterMessage != nil && len(f.messages) > 0 {
		return nil, f.failFetchAfterMessage
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (f *fakePlatform) CreateMessage(_ context.Context, disputeID string, msgType domain.MessageType, payload domain.MessagePayload) (*domain.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messageErr != nil {
		return nil, f.messageErr
	}
	f.messages = append(f.messages, sentMessage{DisputeID: disputeID, Type: msgType, Payload: payload})
	if rec, ok := f.records[disputeID]; ok && f.onMessage != nil {
		f.onMessage(&rec, msgType)
		f.records[disputeID] = rec
	}
	return &domain.MessageRecord{
		ID:        fmt.Sprintf("msg-%d", len(f.messages)),
		DisputeID: disputeID,
		Type:      msgType,
		Subject:   payload.Subject,
		Created:   time.Now(),
	}, nil
}

func (f *fakePlatform) CreateDocument(_ context.Context, disputeID string, doc domain.NewDocument) (*domain.DocumentRecord, error) {
	return &domain.DocumentRecord{ID: "doc-1", DisputeID: disputeID, MessageID: doc.MessageID, Name: doc.Name, Type: doc.Type}, nil
}

func (f *fakePlatform) SearchDisputes(_ context.Context, filter domain.SearchFilter) ([]domain.DisputeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []domain.DisputeRecord
	for _, r := range f.records {
		if filter.MerchantID != "" && r.MerchantID != filter.MerchantID {
			continue
		}
		if filter.TransactionID != "" && r.TransactionID != filter.TransactionID {
			continue
		}
		if filter.Cycle != "" && r.Cycle != filter.Cycle {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.ActionableOnly && !r.Actionable {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakePlatform) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

func record(id string, cycle domain.Cycle, status domain.Status) domain.DisputeRecord {
	return domain.DisputeRecord{
		ID:         id,
		MerchantID: "m-1",
		Cycle:      cycle,
		Status:     status,
		Amount:     4999,
		Currency:   "USD",
		ReasonCode: "4837",
		Reason:     "No cardholder authorization",
		Actionable: true,
	}
}

// moveTo returns an onMessage hook that sets the record to (cycle, status).
func moveTo(cycle domain.Cycle, status domain.Status) func(*domain.DisputeRecord, domain.MessageType) {
	return func(rec *domain.DisputeRecord, _ domain.MessageType) {
		rec.Cycle = cycle
		rec.Status = status
	}
}
