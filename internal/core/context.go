package core

import (
	"time"

	"github.com/google/uuid"
)

// RefreshUserName is the audit attribution recorded for rows written by the
// refresh service itself, as opposed to rows written on behalf of a user.
const RefreshUserName = "analytics-refresh-listener"

// RefreshContext carries the audit attribution and identifiers a refresher
// needs to rebuild the denormalized rows for one account. It is always
// system-originated: refreshes are triggered by bus events, never directly
// by users.
type RefreshContext struct {
	AccountID  uuid.UUID
	TenantID   uuid.UUID
	UserToken  uuid.UUID
	UserName   string
	ReasonCode string
	Comments   string
	CreatedAt  time.Time
}

// NewRefreshContext builds the execution context for a job, stamped with the
// given wall-clock time.
func NewRefreshContext(job Job, now time.Time) RefreshContext {
	return RefreshContext{
		AccountID:  job.AccountID,
		TenantID:   job.TenantID,
		UserToken:  uuid.New(),
		UserName:   RefreshUserName,
		ReasonCode: string(job.EventType),
		Comments:   job.String(),
		CreatedAt:  now,
	}
}
