package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

// InvoiceStateLookup reads the invoice state the listener needs for
// reclassification decisions.
type InvoiceStateLookup struct {
	db *sqlx.DB
}

func NewInvoiceStateLookup(db *sqlx.DB) *InvoiceStateLookup {
	return &InvoiceStateLookup{db: db}
}

func (l *InvoiceStateLookup) InvoiceSummary(ctx context.Context, invoiceID, accountID, tenantID uuid.UUID) (core.InvoiceSummary, error) {
	var summary core.InvoiceSummary
	err := l.db.QueryRowxContext(ctx,
		`SELECT i.amount_credited,
		        (SELECT COUNT(*) FROM invoice_payments p WHERE p.invoice_id = i.id)
		 FROM invoices i
		 WHERE i.id = $1 AND i.account_id = $2 AND i.tenant_id = $3`,
		invoiceID, accountID, tenantID,
	).Scan(&summary.CreditedAmount, &summary.PaymentCount)
	if err != nil {
		return core.InvoiceSummary{}, fmt.Errorf("looking up invoice %s: %w", invoiceID, err)
	}
	return summary, nil
}

// RecordIDLookup resolves object UUIDs to the integer record ids used as
// notification search keys.
type RecordIDLookup struct {
	db *sqlx.DB
}

func NewRecordIDLookup(db *sqlx.DB) *RecordIDLookup {
	return &RecordIDLookup{db: db}
}

func (l *RecordIDLookup) RecordID(ctx context.Context, objectID uuid.UUID, objectType core.ObjectType) (int64, error) {
	table, ok := recordIDTables[objectType]
	if !ok {
		return 0, fmt.Errorf("no record id table for object type %s", objectType)
	}

	var recordID int64
	err := l.db.QueryRowxContext(ctx,
		fmt.Sprintf(`SELECT record_id FROM %s WHERE id = $1`, table), objectID,
	).Scan(&recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no %s with id %s", objectType, objectID)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving record id for %s %s: %w", objectType, objectID, err)
	}
	return recordID, nil
}

var recordIDTables = map[core.ObjectType]string{
	core.ObjectAccount: "accounts",
	core.ObjectTenant:  "tenants",
}
