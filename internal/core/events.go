// Package core defines the essential data structures and interfaces that form
// the backbone of the analytics refresh service. These components are designed
// to be abstract, allowing for flexible and decoupled implementations of the
// refresh logic.
package core

import (
	"fmt"

	"github.com/google/uuid"
)

// EventType identifies the kind of billing lifecycle change carried by a bus event.
type EventType string

const (
	AccountCreation       EventType = "ACCOUNT_CREATION"
	AccountChange         EventType = "ACCOUNT_CHANGE"
	BlockingState         EventType = "BLOCKING_STATE"
	SubscriptionCreation  EventType = "SUBSCRIPTION_CREATION"
	SubscriptionPhase     EventType = "SUBSCRIPTION_PHASE"
	SubscriptionChange    EventType = "SUBSCRIPTION_CHANGE"
	SubscriptionCancel    EventType = "SUBSCRIPTION_CANCEL"
	SubscriptionUncancel  EventType = "SUBSCRIPTION_UNCANCEL"
	SubscriptionBCDChange EventType = "SUBSCRIPTION_BCD_CHANGE"
	OverdueChange         EventType = "OVERDUE_CHANGE"
	InvoiceCreation       EventType = "INVOICE_CREATION"
	InvoiceAdjustment     EventType = "INVOICE_ADJUSTMENT"
	InvoicePaymentSuccess EventType = "INVOICE_PAYMENT_SUCCESS"
	InvoicePaymentFailed  EventType = "INVOICE_PAYMENT_FAILED"
	PaymentSuccess        EventType = "PAYMENT_SUCCESS"
	PaymentFailed         EventType = "PAYMENT_FAILED"
	TagCreation           EventType = "TAG_CREATION"
	TagDeletion           EventType = "TAG_DELETION"
	CustomFieldCreation   EventType = "CUSTOM_FIELD_CREATION"
	CustomFieldDeletion   EventType = "CUSTOM_FIELD_DELETION"
	TenantConfigChange    EventType = "TENANT_CONFIG_CHANGE"
)

// ObjectType identifies the kind of billing object a bus event refers to.
type ObjectType string

const (
	ObjectAccount      ObjectType = "ACCOUNT"
	ObjectSubscription ObjectType = "SUBSCRIPTION"
	ObjectBundle       ObjectType = "BUNDLE"
	ObjectInvoice      ObjectType = "INVOICE"
	ObjectPayment      ObjectType = "PAYMENT"
	ObjectTag          ObjectType = "TAG"
	ObjectCustomField  ObjectType = "CUSTOM_FIELD"
	ObjectTenant       ObjectType = "TENANT"
)

// BusEvent is the wire representation of a billing lifecycle event as
// delivered by the event bus. AccountID is the zero UUID for fleet-wide
// events (e.g. tenant configuration changes) that carry no account.
type BusEvent struct {
	EventType  EventType  `json:"eventType"`
	ObjectType ObjectType `json:"objectType"`
	ObjectID   uuid.UUID  `json:"objectId"`
	AccountID  uuid.UUID  `json:"accountId"`
	TenantID   uuid.UUID  `json:"tenantId"`
}

// Job is an immutable description of one candidate account refresh. Two jobs
// are never merged into a single value; duplicates are detected and one of
// them is skipped instead.
type Job struct {
	EventType  EventType  `json:"eventType"`
	ObjectType ObjectType `json:"objectType"`
	ObjectID   uuid.UUID  `json:"objectId"`
	AccountID  uuid.UUID  `json:"accountId"`
	TenantID   uuid.UUID  `json:"tenantId"`
}

// JobFromEvent builds the refresh job triggered by a bus event.
func JobFromEvent(event BusEvent) Job {
	return Job{
		EventType:  event.EventType,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		AccountID:  event.AccountID,
		TenantID:   event.TenantID,
	}
}

// String renders the job for log lines and audit comments.
func (j Job) String() string {
	return fmt.Sprintf("eventType=%s, objectType=%s, objectId=%s, accountId=%s, tenantId=%s",
		j.EventType, j.ObjectType, j.ObjectID, j.AccountID, j.TenantID)
}
