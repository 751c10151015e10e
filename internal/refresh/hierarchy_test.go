package refresh

import (
	"testing"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

func TestGroupFor(t *testing.T) {
	tests := []struct {
		name       string
		eventType  core.EventType
		objectType core.ObjectType
		want       Group
	}{
		{"Account creation", core.AccountCreation, core.ObjectAccount, GroupAll},
		{"Account change", core.AccountChange, core.ObjectAccount, GroupAll},
		{"Subscription creation", core.SubscriptionCreation, core.ObjectSubscription, GroupSubscriptions},
		{"Subscription phase", core.SubscriptionPhase, core.ObjectSubscription, GroupSubscriptions},
		{"Subscription cancel", core.SubscriptionCancel, core.ObjectSubscription, GroupSubscriptions},
		{"Subscription BCD change", core.SubscriptionBCDChange, core.ObjectSubscription, GroupSubscriptions},
		{"Blocking state", core.BlockingState, core.ObjectAccount, GroupSubscriptions},
		{"Overdue change", core.OverdueChange, core.ObjectAccount, GroupOverdue},
		{"Invoice creation", core.InvoiceCreation, core.ObjectInvoice, GroupInvoices},
		{"Invoice adjustment", core.InvoiceAdjustment, core.ObjectInvoice, GroupInvoices},
		{"Payment success", core.PaymentSuccess, core.ObjectPayment, GroupInvoiceAndPayments},
		{"Payment failure", core.PaymentFailed, core.ObjectPayment, GroupInvoiceAndPayments},
		{"Invoice payment success", core.InvoicePaymentSuccess, core.ObjectInvoice, GroupInvoiceAndPayments},
		{"Custom field creation", core.CustomFieldCreation, core.ObjectAccount, GroupFields},
		{"Custom field deletion", core.CustomFieldDeletion, core.ObjectInvoice, GroupFields},
		{"Tag on account", core.TagCreation, core.ObjectAccount, GroupAll},
		{"Tag removed from account", core.TagDeletion, core.ObjectAccount, GroupAll},
		{"Tag on invoice", core.TagCreation, core.ObjectInvoice, GroupOther},
		{"Tenant config change", core.TenantConfigChange, core.ObjectTenant, GroupOther},
		{"Unknown event type", core.EventType("SOMETHING_NEW"), core.ObjectAccount, GroupOther},
		{"Empty event type", core.EventType(""), core.ObjectType(""), GroupOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := core.Job{EventType: tt.eventType, ObjectType: tt.objectType}
			if got := GroupFor(job); got != tt.want {
				t.Errorf("GroupFor(%s, %s) = %s, want %s", tt.eventType, tt.objectType, got, tt.want)
			}
		})
	}
}

func TestGroupForIsStable(t *testing.T) {
	job := core.Job{EventType: core.SubscriptionChange, ObjectType: core.ObjectSubscription}
	first := GroupFor(job)
	for i := 0; i < 100; i++ {
		if got := GroupFor(job); got != first {
			t.Fatalf("GroupFor is not deterministic: got %s then %s", first, got)
		}
	}
}

func TestParseGroup(t *testing.T) {
	tests := []struct {
		input   string
		want    Group
		wantErr bool
	}{
		{"ALL", GroupAll, false},
		{"subscriptions", GroupSubscriptions, false},
		{"  Invoice_And_Payments  ", GroupInvoiceAndPayments, false},
		{"other", GroupOther, false},
		{"PAYMENTS", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseGroup(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseGroup(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGroup(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseGroup(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
