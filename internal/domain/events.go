package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a subscription lifecycle outcome that may trigger a notification.
type EventType string

const (
	EventTrialStarted     EventType = "trial_started"
	EventPaymentRequested EventType = "payment_requested"
	EventActivated        EventType = "activated"
	EventExtended         EventType = "extended"
	EventPaymentFailed    EventType = "payment_failed"
	EventPaymentDue       EventType = "pending_payment_entered"
	EventExpired          EventType = "expired"
	EventCancelled        EventType = "cancelled"
	EventSuspended        EventType = "suspended"
	EventTrialEndingSoon  EventType = "trial_ending_soon"
	EventRenewalReminder  EventType = "renewal_reminder"
)

// TransitionEvent is returned by every state change. Services hand these to an EventSink
// after the transaction commits; nothing is emitted implicitly on save.
type TransitionEvent struct {
	Type           EventType          `json:"type"`
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	AdminID        string             `json:"admin_id"`
	AdminEmail     string             `json:"admin_email"`
	From           SubscriptionStatus `json:"from"`
	To             SubscriptionStatus `json:"to"`
	TransactionRef string             `json:"transaction_ref,omitempty"`
	Amount         decimal.Decimal    `json:"amount"`
	Currency       string             `json:"currency"`
	PeriodEnd      *time.Time         `json:"period_end,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// IsZero reports an empty event (no transition happened).
func (e TransitionEvent) IsZero() bool {
	return e.Type == ""
}

// WithTransaction attaches the payment reference that caused the event.
func (e TransitionEvent) WithTransaction(ref string, amount decimal.Decimal) TransitionEvent {
	e.TransactionRef = ref
	e.Amount = amount
	return e
}

// Notification is a fire-and-forget message for the delivery collaborator.
type Notification struct {
	Recipient string                 `json:"recipient"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
}
