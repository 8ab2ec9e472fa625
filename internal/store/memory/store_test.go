package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

func TestStore_RecordAndLast(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, ok, err := s.Last(ctx, "cb-1")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC()
	require.NoError(t, s.Record(ctx, domain.Observation{DisputeID: "cb-1", Stage: "first", ObservedAt: now}))
	require.NoError(t, s.Record(ctx, domain.Observation{DisputeID: "cb-1", Stage: "representment", Action: "represent", ObservedAt: now, ActedAt: now}))

	obs, ok, err := s.Last(ctx, "cb-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "representment", obs.Stage)
	assert.Equal(t, "represent", obs.Action)
	assert.Equal(t, 1, s.Len())

	assert.Error(t, s.Record(ctx, domain.Observation{Stage: "first"}))
}

func TestStore_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("cb-%d", i%10)
			_ = s.Record(ctx, domain.Observation{DisputeID: id, Stage: "first"})
			_, _, _ = s.Last(ctx, id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
}
