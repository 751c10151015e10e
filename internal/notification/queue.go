// Package notification provides the persistent delay queue that drives
// debounced analytics refreshes. A recorded notification becomes ready once
// its effective date has passed; the poller claims ready notifications,
// hands them to a handler, and removes them when the handler returns.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

// ProcessingState tracks a notification through its lifecycle. FUTURE
// notifications are waiting for their effective date; IN_PROCESSING ones have
// been claimed by a poller and are being handled.
type ProcessingState string

const (
	StateFuture       ProcessingState = "FUTURE"
	StateInProcessing ProcessingState = "IN_PROCESSING"
)

// Notification is the persisted envelope around a refresh job. RecordID is a
// monotonically increasing insertion sequence assigned by the queue; it is the
// sole tie-break when several overlapping notifications exist for an account,
// because scheduled times may collide. FutureUserToken distinguishes one
// scheduling attempt from another carrying the same logical job.
type Notification struct {
	RecordID         int64
	Job              core.Job
	EffectiveDate    time.Time
	FutureUserToken  uuid.UUID
	AccountSearchKey *int64
	TenantSearchKey  *int64
	State            ProcessingState
}

// Queue is the durable, queryable delay queue consumed by the refresh
// listener. Implementations assign RecordID at insertion time and never
// mutate a recorded notification other than moving it between states and
// deleting it.
type Queue interface {
	// RecordFuture persists a notification to be delivered at or after
	// effectiveDate.
	RecordFuture(ctx context.Context, effectiveDate time.Time, job core.Job, token uuid.UUID, accountKey, tenantKey *int64) error

	// FutureForSearchKeys returns the not-yet-claimed notifications matching
	// the search keys.
	FutureForSearchKeys(ctx context.Context, accountKey, tenantKey *int64) ([]Notification, error)

	// FutureOrInProcessingForSearchKeys additionally includes claimed
	// notifications whose handling has not finished.
	FutureOrInProcessingForSearchKeys(ctx context.Context, accountKey, tenantKey *int64) ([]Notification, error)

	// ClaimReady atomically moves up to limit due notifications to
	// IN_PROCESSING and returns them.
	ClaimReady(ctx context.Context, now time.Time, limit int) ([]Notification, error)

	// Done removes a claimed notification after a terminal outcome, whether
	// the job ran or was skipped.
	Done(ctx context.Context, recordID int64) error
}
