package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationCollector struct {
	mu       sync.Mutex
	seen     []Notification
	err      error
	received chan struct{}
}

func newNotificationCollector(capacity int) *notificationCollector {
	return &notificationCollector{received: make(chan struct{}, capacity)}
}

func (c *notificationCollector) handle(_ context.Context, n Notification) error {
	c.mu.Lock()
	c.seen = append(c.seen, n)
	c.mu.Unlock()
	c.received <- struct{}{}
	return c.err
}

func (c *notificationCollector) waitFor(t *testing.T, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		select {
		case <-c.received:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %d notifications", count)
		}
	}
}

func (c *notificationCollector) recordIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.seen))
	for _, n := range c.seen {
		ids = append(ids, n.RecordID)
	}
	return ids
}

func TestPollerDeliversDueNotificationsOnce(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	past := time.Now().Add(-time.Second)

	require.NoError(t, q.RecordFuture(ctx, past, testJob(), uuid.New(), nil, nil))
	require.NoError(t, q.RecordFuture(ctx, past, testJob(), uuid.New(), nil, nil))

	collector := newNotificationCollector(4)
	p := NewPoller(q, collector.handle, 5*time.Millisecond, 10, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Start(ctx)
	collector.waitFor(t, 2)
	p.Stop()

	assert.ElementsMatch(t, []int64{1, 2}, collector.recordIDs())

	// Handled notifications are gone from the queue for good.
	remaining, err := q.FutureOrInProcessingForSearchKeys(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPollerRemovesNotificationOnHandlerFailure(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.RecordFuture(ctx, time.Now().Add(-time.Second), testJob(), uuid.New(), nil, nil))

	collector := newNotificationCollector(2)
	collector.err = errors.New("handler failed")
	p := NewPoller(q, collector.handle, 5*time.Millisecond, 10, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Start(ctx)
	collector.waitFor(t, 1)
	p.Stop()

	// No redelivery: the next triggering event restores correctness instead.
	remaining, err := q.FutureOrInProcessingForSearchKeys(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Len(t, collector.recordIDs(), 1)
}

func TestPollerLeavesFutureNotificationsAlone(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.RecordFuture(ctx, time.Now().Add(time.Hour), testJob(), uuid.New(), nil, nil))

	collector := newNotificationCollector(1)
	p := NewPoller(q, collector.handle, 5*time.Millisecond, 10, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.Empty(t, collector.recordIDs())
	remaining, err := q.FutureForSearchKeys(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
