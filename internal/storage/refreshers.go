// Package storage implements the per-group analytics refreshers. Each
// refresher rebuilds one family of denormalized reporting rows for a single
// account by deleting the account's rows and re-materializing them from the
// live billing tables, inside one transaction.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

// rebuild runs delete + insert statements for one account in a transaction.
// Every statement receives (accountID, tenantID) plus the audit attribution
// appended by auditArgs.
func rebuild(ctx context.Context, db *sqlx.DB, rctx core.RefreshContext, deleteStmt string, insertStmt string, insertArgs []interface{}) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning refresh transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteStmt, rctx.AccountID, rctx.TenantID); err != nil {
		return fmt.Errorf("clearing stale rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertStmt, insertArgs...); err != nil {
		return fmt.Errorf("materializing rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing refresh: %w", err)
	}
	return nil
}

func auditArgs(rctx core.RefreshContext) []interface{} {
	return []interface{}{
		rctx.AccountID, rctx.TenantID,
		rctx.CreatedAt, rctx.UserName, rctx.ReasonCode, rctx.Comments,
	}
}

// AccountRefresher rebuilds the account summary row.
type AccountRefresher struct {
	db *sqlx.DB
}

func NewAccountRefresher(db *sqlx.DB) *AccountRefresher {
	return &AccountRefresher{db: db}
}

func (r *AccountRefresher) Refresh(ctx context.Context, rctx core.RefreshContext) error {
	return rebuild(ctx, r.db, rctx,
		`DELETE FROM analytics_accounts WHERE account_id = $1 AND tenant_id = $2`,
		`INSERT INTO analytics_accounts
			(account_id, tenant_id, name, external_key, currency, balance,
			 created_date, created_by, created_reason_code, created_comments)
		 SELECT a.id, a.tenant_id, a.name, a.external_key, a.currency,
		        COALESCE((SELECT SUM(i.balance) FROM invoices i WHERE i.account_id = a.id), 0),
		        $3, $4, $5, $6
		 FROM accounts a
		 WHERE a.id = $1 AND a.tenant_id = $2`,
		auditArgs(rctx))
}

// SubscriptionRefresher rebuilds the subscription transition rows.
type SubscriptionRefresher struct {
	db *sqlx.DB
}

func NewSubscriptionRefresher(db *sqlx.DB) *SubscriptionRefresher {
	return &SubscriptionRefresher{db: db}
}

func (r *SubscriptionRefresher) Refresh(ctx context.Context, rctx core.RefreshContext) error {
	return rebuild(ctx, r.db, rctx,
		`DELETE FROM analytics_subscription_transitions WHERE account_id = $1 AND tenant_id = $2`,
		`INSERT INTO analytics_subscription_transitions
			(account_id, tenant_id, subscription_id, bundle_id, plan_name, phase_name,
			 state, effective_date, created_date, created_by, created_reason_code, created_comments)
		 SELECT s.account_id, s.tenant_id, s.id, s.bundle_id, s.plan_name, s.phase_name,
		        s.state, s.effective_date, $3, $4, $5, $6
		 FROM subscription_events s
		 WHERE s.account_id = $1 AND s.tenant_id = $2`,
		auditArgs(rctx))
}

// OverdueRefresher rebuilds the overdue status timeline rows.
type OverdueRefresher struct {
	db *sqlx.DB
}

func NewOverdueRefresher(db *sqlx.DB) *OverdueRefresher {
	return &OverdueRefresher{db: db}
}

func (r *OverdueRefresher) Refresh(ctx context.Context, rctx core.RefreshContext) error {
	return rebuild(ctx, r.db, rctx,
		`DELETE FROM analytics_overdue_statuses WHERE account_id = $1 AND tenant_id = $2`,
		`INSERT INTO analytics_overdue_statuses
			(account_id, tenant_id, blocking_state_record_id, status, start_date, end_date,
			 created_date, created_by, created_reason_code, created_comments)
		 SELECT b.account_id, b.tenant_id, b.record_id, b.state, b.effective_date,
		        LEAD(b.effective_date) OVER (ORDER BY b.effective_date, b.record_id),
		        $3, $4, $5, $6
		 FROM blocking_states b
		 WHERE b.account_id = $1 AND b.tenant_id = $2 AND b.service = 'overdue-service'`,
		auditArgs(rctx))
}

// InvoiceRefresher rebuilds invoice rows, either for one invoice or for the
// whole account.
type InvoiceRefresher struct {
	db *sqlx.DB
}

func NewInvoiceRefresher(db *sqlx.DB) *InvoiceRefresher {
	return &InvoiceRefresher{db: db}
}

func (r *InvoiceRefresher) RefreshInvoice(ctx context.Context, invoiceID uuid.UUID, rctx core.RefreshContext) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning invoice refresh transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM analytics_invoices WHERE invoice_id = $1 AND account_id = $2 AND tenant_id = $3`,
		invoiceID, rctx.AccountID, rctx.TenantID); err != nil {
		return fmt.Errorf("clearing stale invoice row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analytics_invoices
			(invoice_id, account_id, tenant_id, invoice_number, invoice_date, amount_charged,
			 amount_credited, balance, created_date, created_by, created_reason_code, created_comments)
		 SELECT i.id, i.account_id, i.tenant_id, i.invoice_number, i.invoice_date, i.amount_charged,
		        i.amount_credited, i.balance, $4, $5, $6, $7
		 FROM invoices i
		 WHERE i.id = $1 AND i.account_id = $2 AND i.tenant_id = $3`,
		invoiceID, rctx.AccountID, rctx.TenantID,
		rctx.CreatedAt, rctx.UserName, rctx.ReasonCode, rctx.Comments); err != nil {
		return fmt.Errorf("materializing invoice row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing invoice refresh: %w", err)
	}
	return nil
}

func (r *InvoiceRefresher) Refresh(ctx context.Context, rctx core.RefreshContext) error {
	return rebuild(ctx, r.db, rctx,
		`DELETE FROM analytics_invoices WHERE account_id = $1 AND tenant_id = $2`,
		`INSERT INTO analytics_invoices
			(invoice_id, account_id, tenant_id, invoice_number, invoice_date, amount_charged,
			 amount_credited, balance, created_date, created_by, created_reason_code, created_comments)
		 SELECT i.id, i.account_id, i.tenant_id, i.invoice_number, i.invoice_date, i.amount_charged,
		        i.amount_credited, i.balance, $3, $4, $5, $6
		 FROM invoices i
		 WHERE i.account_id = $1 AND i.tenant_id = $2`,
		auditArgs(rctx))
}

// InvoicePaymentRefresher rebuilds invoice and payment rows together, used
// when a payment event can change the amounts applied to invoices.
type InvoicePaymentRefresher struct {
	db       *sqlx.DB
	invoices *InvoiceRefresher
}

func NewInvoicePaymentRefresher(db *sqlx.DB) *InvoicePaymentRefresher {
	return &InvoicePaymentRefresher{db: db, invoices: NewInvoiceRefresher(db)}
}

func (r *InvoicePaymentRefresher) Refresh(ctx context.Context, rctx core.RefreshContext) error {
	if err := r.invoices.Refresh(ctx, rctx); err != nil {
		return err
	}
	return rebuild(ctx, r.db, rctx,
		`DELETE FROM analytics_payments WHERE account_id = $1 AND tenant_id = $2`,
		`INSERT INTO analytics_payments
			(payment_id, invoice_id, account_id, tenant_id, amount, currency, payment_date, status,
			 created_date, created_by, created_reason_code, created_comments)
		 SELECT p.id, p.invoice_id, p.account_id, p.tenant_id, p.amount, p.currency, p.payment_date, p.status,
		        $3, $4, $5, $6
		 FROM invoice_payments p
		 WHERE p.account_id = $1 AND p.tenant_id = $2`,
		auditArgs(rctx))
}

// FieldRefresher rebuilds the custom field rows.
type FieldRefresher struct {
	db *sqlx.DB
}

func NewFieldRefresher(db *sqlx.DB) *FieldRefresher {
	return &FieldRefresher{db: db}
}

func (r *FieldRefresher) Refresh(ctx context.Context, rctx core.RefreshContext) error {
	return rebuild(ctx, r.db, rctx,
		`DELETE FROM analytics_fields WHERE account_id = $1 AND tenant_id = $2`,
		`INSERT INTO analytics_fields
			(account_id, tenant_id, object_id, object_type, name, value,
			 created_date, created_by, created_reason_code, created_comments)
		 SELECT f.account_id, f.tenant_id, f.object_id, f.object_type, f.field_name, f.field_value,
		        $3, $4, $5, $6
		 FROM custom_fields f
		 WHERE f.account_id = $1 AND f.tenant_id = $2`,
		auditArgs(rctx))
}
