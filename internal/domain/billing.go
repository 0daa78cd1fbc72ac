package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType is the purpose of a payment attempt
type PaymentType string

const (
	PaymentTypeSubscription    PaymentType = "subscription"
	PaymentTypeTrialActivation PaymentType = "trial_activation"
	PaymentTypeRenewal         PaymentType = "renewal"
)

// Valid reports whether t is a known payment type.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeSubscription, PaymentTypeTrialActivation, PaymentTypeRenewal:
		return true
	}
	return false
}

// BillingStatus is the lifecycle of a billing period
type BillingStatus string

const (
	BillingStatusPending   BillingStatus = "pending"
	BillingStatusCompleted BillingStatus = "completed"
	BillingStatusFailed    BillingStatus = "failed"
	BillingStatusRefunded  BillingStatus = "refunded"
)

// PaymentMethod identifies how a billing period was paid
type PaymentMethod string

const (
	PaymentMethodEsewa  PaymentMethod = "esewa"
	PaymentMethodManual PaymentMethod = "manual"
)

// BillingRecord is one attempted billing period.
type BillingRecord struct {
	ID             uuid.UUID       `json:"id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         PaymentMethod   `json:"payment_method"`
	Status         BillingStatus   `json:"status"`
	PeriodStart    time.Time       `json:"billing_period_start"`
	PeriodEnd      time.Time       `json:"billing_period_end"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsFinal reports whether the engine may no longer change the record.
func (b *BillingRecord) IsFinal() bool {
	return b.Status == BillingStatusCompleted || b.Status == BillingStatusRefunded
}

// PaymentAttempt is one gateway round trip, keyed by its transaction reference.
type PaymentAttempt struct {
	ID               uuid.UUID              `json:"id"`
	SubscriptionID   uuid.UUID              `json:"subscription_id"`
	BillingRecordID  *uuid.UUID             `json:"billing_record_id,omitempty"`
	PaymentType      PaymentType            `json:"payment_type"`
	TransactionRef   string                 `json:"transaction_id"`
	Amount           decimal.Decimal        `json:"amount"`
	Currency         string                 `json:"currency"`
	ProductCode      string                 `json:"-"`
	Sandbox          bool                   `json:"sandbox"`
	IsSuccessful     bool                   `json:"is_successful"`
	GatewayRefID     string                 `json:"gateway_ref_id,omitempty"`
	ResponseSnapshot map[string]interface{} `json:"-"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
	ProcessedAt      *time.Time             `json:"processed_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// IsResolved reports whether the attempt has a final outcome.
func (p *PaymentAttempt) IsResolved() bool {
	return p.ProcessedAt != nil
}

// IsInFlight reports an unresolved attempt still inside the grace window.
func (p *PaymentAttempt) IsInFlight(now time.Time) bool {
	return !p.IsResolved() && now.Sub(p.CreatedAt) < PaymentGraceWindow
}

// Outcome returns the recorded result of a resolved attempt.
func (p *PaymentAttempt) Outcome() PaymentOutcome {
	switch {
	case !p.IsResolved():
		return PaymentOutcomePending
	case p.IsSuccessful:
		return PaymentOutcomeSucceeded
	default:
		return PaymentOutcomeFailed
	}
}

// NewTransactionRef mints the gateway reference SUB_<sub>_<attempt>_<random>.
func NewTransactionRef(subscriptionID, attemptID uuid.UUID) string {
	suffix := uuid.New()
	return fmt.Sprintf("SUB_%s_%s_%x",
		subscriptionID.String()[:8], attemptID.String()[:8], suffix[:4])
}

// PaymentOutcome is the resolution state of a payment attempt
type PaymentOutcome string

const (
	PaymentOutcomePending   PaymentOutcome = "pending"
	PaymentOutcomeSucceeded PaymentOutcome = "succeeded"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
)

// RefundStatus is the manual lifecycle of a refund request
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
	RefundStatusRefunded RefundStatus = "refunded"
)

// RefundRequest is raised by an admin against a completed billing record and processed by staff.
type RefundRequest struct {
	ID              uuid.UUID    `json:"id"`
	BillingRecordID uuid.UUID    `json:"billing_record_id"`
	AdminID         string       `json:"admin_id"`
	Reason          string       `json:"reason"`
	Status          RefundStatus `json:"status"`
	AdminNotes      string       `json:"admin_notes,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
