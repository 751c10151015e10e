package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

func testJob() core.Job {
	return core.Job{
		EventType:  core.SubscriptionCreation,
		ObjectType: core.ObjectSubscription,
		ObjectID:   uuid.New(),
		AccountID:  uuid.New(),
		TenantID:   uuid.New(),
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestMemoryQueueRecordAssignsMonotonicIDs(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.RecordFuture(ctx, now, testJob(), uuid.New(), int64Ptr(1), int64Ptr(2)))
	}

	future, err := q.FutureForSearchKeys(ctx, int64Ptr(1), int64Ptr(2))
	require.NoError(t, err)
	require.Len(t, future, 3)
	assert.Equal(t, int64(1), future[0].RecordID)
	assert.Equal(t, int64(2), future[1].RecordID)
	assert.Equal(t, int64(3), future[2].RecordID)
}

func TestMemoryQueueClaimReadyRespectsEffectiveDate(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.RecordFuture(ctx, now.Add(-time.Second), testJob(), uuid.New(), nil, nil))
	require.NoError(t, q.RecordFuture(ctx, now.Add(time.Hour), testJob(), uuid.New(), nil, nil))

	claimed, err := q.ClaimReady(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, int64(1), claimed[0].RecordID)
	assert.Equal(t, StateInProcessing, claimed[0].State)

	// Claimed notifications must not be claimed twice.
	again, err := q.ClaimReady(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMemoryQueueClaimReadyHonorsLimit(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.RecordFuture(ctx, now, testJob(), uuid.New(), nil, nil))
	}

	claimed, err := q.ClaimReady(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, int64(1), claimed[0].RecordID, "oldest records claim first")
	assert.Equal(t, int64(2), claimed[1].RecordID)
}

func TestMemoryQueueStateVisibility(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Now()
	key1, key2 := int64Ptr(7), int64Ptr(8)

	require.NoError(t, q.RecordFuture(ctx, now, testJob(), uuid.New(), key1, key2))
	require.NoError(t, q.RecordFuture(ctx, now.Add(time.Hour), testJob(), uuid.New(), key1, key2))

	// Move record 1 to IN_PROCESSING.
	claimed, err := q.ClaimReady(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	future, err := q.FutureForSearchKeys(ctx, key1, key2)
	require.NoError(t, err)
	require.Len(t, future, 1)
	assert.Equal(t, int64(2), future[0].RecordID, "claimed records leave the future set")

	both, err := q.FutureOrInProcessingForSearchKeys(ctx, key1, key2)
	require.NoError(t, err)
	assert.Len(t, both, 2, "claimed records stay visible to the wider set")

	require.NoError(t, q.Done(ctx, claimed[0].RecordID))
	both, err = q.FutureOrInProcessingForSearchKeys(ctx, key1, key2)
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, int64(2), both[0].RecordID)
}

func TestMemoryQueueSearchKeyMatching(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.RecordFuture(ctx, now, testJob(), uuid.New(), int64Ptr(1), int64Ptr(2)))
	require.NoError(t, q.RecordFuture(ctx, now, testJob(), uuid.New(), int64Ptr(1), int64Ptr(3)))
	require.NoError(t, q.RecordFuture(ctx, now, testJob(), uuid.New(), nil, nil))

	tests := []struct {
		name         string
		key1, key2   *int64
		wantRecordID []int64
	}{
		{"exact match", int64Ptr(1), int64Ptr(2), []int64{1}},
		{"different tenant key", int64Ptr(1), int64Ptr(3), []int64{2}},
		{"no match", int64Ptr(9), int64Ptr(9), nil},
		{"nil keys match only keyless records", nil, nil, []int64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := q.FutureForSearchKeys(ctx, tt.key1, tt.key2)
			require.NoError(t, err)
			var ids []int64
			for _, n := range got {
				ids = append(ids, n.RecordID)
			}
			assert.Equal(t, tt.wantRecordID, ids)
		})
	}
}
