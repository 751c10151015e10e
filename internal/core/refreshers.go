package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Refresher rebuilds one facet of the denormalized analytics rows for the
// account identified by the refresh context. Implementations read the current
// state of the billing objects at run time; the triggering event's payload is
// deliberately not part of the contract, so a delayed job always materializes
// the latest state.
type Refresher interface {
	Refresh(ctx context.Context, rctx RefreshContext) error
}

// InvoiceRefresher is the object-scoped variant used for single-invoice
// refreshes.
type InvoiceRefresher interface {
	RefreshInvoice(ctx context.Context, invoiceID uuid.UUID, rctx RefreshContext) error
}

// InvoiceSummary is the slice of invoice state the listener needs to decide
// whether an invoice event must also refresh payment rows.
type InvoiceSummary struct {
	CreditedAmount float64
	PaymentCount   int
}

// InvoiceLookup fetches the current state of an invoice.
type InvoiceLookup interface {
	InvoiceSummary(ctx context.Context, invoiceID, accountID, tenantID uuid.UUID) (InvoiceSummary, error)
}

// RecordIDResolver maps object UUIDs to the integer surrogate keys used as
// search keys on the notification queue. Resolution failures are expected to
// be transient; callers degrade rather than block ingestion.
type RecordIDResolver interface {
	RecordID(ctx context.Context, objectID uuid.UUID, objectType ObjectType) (int64, error)
}

// RefreshError reports a failed refresh with enough context to replay it
// manually.
type RefreshError struct {
	Job Job
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("analytics refresh failed for %s: %v", e.Job, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
