// Package refresh implements the event-to-job classification, the debounce
// scheduler that coalesces bursts of related events per account, the
// execution-time duplicate check, and the account-level locking around
// refresh dispatch.
package refresh

import (
	"fmt"
	"strings"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

// Group classifies a job's refresh scope. An ALL job refreshes every facet
// and therefore subsumes any narrower job for the same account.
type Group string

const (
	GroupAll                Group = "ALL"
	GroupSubscriptions      Group = "SUBSCRIPTIONS"
	GroupOverdue            Group = "OVERDUE"
	GroupInvoices           Group = "INVOICES"
	GroupInvoiceAndPayments Group = "INVOICE_AND_PAYMENTS"
	GroupFields             Group = "FIELDS"
	GroupOther              Group = "OTHER"
)

// GroupFor maps a job to its refresh group. The mapping is total: pairs the
// service does not recognize resolve to GroupOther rather than an error, so
// the host event taxonomy can grow without breaking ingestion.
func GroupFor(job core.Job) Group {
	switch job.EventType {
	case core.AccountCreation, core.AccountChange:
		return GroupAll
	case core.SubscriptionCreation,
		core.SubscriptionPhase,
		core.SubscriptionChange,
		core.SubscriptionCancel,
		core.SubscriptionUncancel,
		core.SubscriptionBCDChange,
		core.BlockingState:
		return GroupSubscriptions
	case core.OverdueChange:
		return GroupOverdue
	case core.InvoiceCreation, core.InvoiceAdjustment:
		return GroupInvoices
	case core.PaymentSuccess,
		core.PaymentFailed,
		core.InvoicePaymentSuccess,
		core.InvoicePaymentFailed:
		return GroupInvoiceAndPayments
	case core.CustomFieldCreation, core.CustomFieldDeletion:
		return GroupFields
	case core.TagCreation, core.TagDeletion:
		// Account tags can flip report-level flags (e.g. test accounts), so
		// they invalidate every facet. Tags on other objects are inert.
		if job.ObjectType == core.ObjectAccount {
			return GroupAll
		}
		return GroupOther
	default:
		return GroupOther
	}
}

// ParseGroup resolves a case-insensitive group name, as found in the
// ignored-groups configuration.
func ParseGroup(s string) (Group, error) {
	g := Group(strings.ToUpper(strings.TrimSpace(s)))
	switch g {
	case GroupAll, GroupSubscriptions, GroupOverdue, GroupInvoices,
		GroupInvoiceAndPayments, GroupFields, GroupOther:
		return g, nil
	}
	return "", fmt.Errorf("unknown refresh group %q", s)
}
