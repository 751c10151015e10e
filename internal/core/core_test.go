package core

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobFromEvent(t *testing.T) {
	event := BusEvent{
		EventType:  InvoiceCreation,
		ObjectType: ObjectInvoice,
		ObjectID:   uuid.New(),
		AccountID:  uuid.New(),
		TenantID:   uuid.New(),
	}

	job := JobFromEvent(event)

	assert.Equal(t, event.EventType, job.EventType)
	assert.Equal(t, event.ObjectType, job.ObjectType)
	assert.Equal(t, event.ObjectID, job.ObjectID)
	assert.Equal(t, event.AccountID, job.AccountID)
	assert.Equal(t, event.TenantID, job.TenantID)
}

func TestJobString(t *testing.T) {
	objectID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	accountID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	tenantID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	job := Job{
		EventType:  SubscriptionCreation,
		ObjectType: ObjectSubscription,
		ObjectID:   objectID,
		AccountID:  accountID,
		TenantID:   tenantID,
	}

	want := "eventType=SUBSCRIPTION_CREATION, objectType=SUBSCRIPTION" +
		", objectId=11111111-1111-1111-1111-111111111111" +
		", accountId=22222222-2222-2222-2222-222222222222" +
		", tenantId=33333333-3333-3333-3333-333333333333"
	assert.Equal(t, want, job.String())
}

func TestNewRefreshContext(t *testing.T) {
	job := Job{
		EventType: OverdueChange,
		AccountID: uuid.New(),
		TenantID:  uuid.New(),
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rctx := NewRefreshContext(job, now)

	assert.Equal(t, job.AccountID, rctx.AccountID)
	assert.Equal(t, job.TenantID, rctx.TenantID)
	assert.Equal(t, RefreshUserName, rctx.UserName)
	assert.Equal(t, "OVERDUE_CHANGE", rctx.ReasonCode)
	assert.Equal(t, job.String(), rctx.Comments)
	assert.Equal(t, now, rctx.CreatedAt)
	assert.NotEqual(t, uuid.Nil, rctx.UserToken)

	// Each invocation mints a fresh token for audit trails.
	other := NewRefreshContext(job, now)
	assert.NotEqual(t, rctx.UserToken, other.UserToken)
}

func TestRefreshErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	job := Job{EventType: PaymentSuccess, AccountID: uuid.New()}

	err := &RefreshError{Job: job, Err: cause}

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "PAYMENT_SUCCESS")
}
