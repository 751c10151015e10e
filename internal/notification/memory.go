package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

// MemoryQueue is an in-process Queue with the same state machine as the
// Postgres implementation. It backs tests and single-node development runs;
// it provides no durability and no cross-process visibility.
type MemoryQueue struct {
	mu           sync.Mutex
	nextRecordID int64
	entries      map[int64]Notification
}

// NewMemoryQueue returns an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[int64]Notification)}
}

func (q *MemoryQueue) RecordFuture(_ context.Context, effectiveDate time.Time, job core.Job, token uuid.UUID, accountKey, tenantKey *int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextRecordID++
	q.entries[q.nextRecordID] = Notification{
		RecordID:         q.nextRecordID,
		Job:              job,
		EffectiveDate:    effectiveDate,
		FutureUserToken:  token,
		AccountSearchKey: accountKey,
		TenantSearchKey:  tenantKey,
		State:            StateFuture,
	}
	return nil
}

func (q *MemoryQueue) FutureForSearchKeys(_ context.Context, accountKey, tenantKey *int64) ([]Notification, error) {
	return q.selectByKeys(accountKey, tenantKey, StateFuture), nil
}

func (q *MemoryQueue) FutureOrInProcessingForSearchKeys(_ context.Context, accountKey, tenantKey *int64) ([]Notification, error) {
	return q.selectByKeys(accountKey, tenantKey, StateFuture, StateInProcessing), nil
}

func (q *MemoryQueue) ClaimReady(_ context.Context, now time.Time, limit int) ([]Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Notification
	for _, n := range q.entries {
		if n.State == StateFuture && !n.EffectiveDate.After(now) {
			due = append(due, n)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RecordID < due[j].RecordID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i, n := range due {
		n.State = StateInProcessing
		q.entries[n.RecordID] = n
		due[i] = n
	}
	return due, nil
}

func (q *MemoryQueue) Done(_ context.Context, recordID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, recordID)
	return nil
}

func (q *MemoryQueue) selectByKeys(accountKey, tenantKey *int64, states ...ProcessingState) []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Notification
	for _, n := range q.entries {
		if !keyMatches(n.AccountSearchKey, accountKey) || !keyMatches(n.TenantSearchKey, tenantKey) {
			continue
		}
		for _, s := range states {
			if n.State == s {
				out = append(out, n)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out
}

func keyMatches(have, want *int64) bool {
	if want == nil || have == nil {
		return (want == nil) == (have == nil)
	}
	return *have == *want
}
