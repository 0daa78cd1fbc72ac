package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	domainports "github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// EnrollResult describes the outcome of an enrollment request
type EnrollResult struct {
	Subscription *domain.Subscription
	// Created is set when a new trial was granted
	Created bool
	// CanRenew is set when the existing subscription must be paid for to regain access
	CanRenew bool
	Message  string
}

// PaymentRequest asks for a new gateway payment
type PaymentRequest struct {
	Admin    domain.Admin
	Type     domain.PaymentType
	Amount   decimal.Decimal
	Currency string
}

// PaymentInitiation is returned by an accepted payment request
type PaymentInitiation struct {
	TransactionRef string
	Amount         decimal.Decimal
	Currency       string
	PaymentType    domain.PaymentType
	Sandbox        bool
	Status         domain.SubscriptionStatus
	Form           *domainports.PaymentForm
}

// ConfirmRequest applies a gateway outcome to an attempt
type ConfirmRequest struct {
	TransactionRef string
	Result         domainports.VerifyResult
}

// ConfirmResult is the recorded outcome of an attempt
type ConfirmResult struct {
	TransactionRef string
	Outcome        domain.PaymentOutcome
	// Duplicate is set when the attempt had already been resolved
	Duplicate    bool
	Code         string
	Message      string
	GatewayRefID string
	Subscription *domain.Subscription
}

// VerifyPaymentRequest resolves a payment from a client call or a gateway callback
type VerifyPaymentRequest struct {
	TransactionRef string
	Callback       *domainports.CallbackData
	// AdminID, when set, must own the attempt
	AdminID string
}

// StatusView is the read model returned by the status endpoint
type StatusView struct {
	HasSubscription      bool
	Status               domain.SubscriptionStatus
	IsTrialActive        bool
	IsSubscriptionActive bool
	HasAccess            bool
	DaysRemaining        int
	TrialStart           *time.Time
	TrialEnd             *time.Time
	SubscriptionStart    *time.Time
	SubscriptionEnd      *time.Time
	MonthlyFee           decimal.Decimal
	Currency             string
	NextPaymentAt        *time.Time
}

// AccessView answers the tenant-wide access check
type AccessView struct {
	HasAccess     bool
	Status        domain.SubscriptionStatus
	DaysRemaining int
	Message       string
}

// RefundRequestInput raises a refund request against a completed billing record
type RefundRequestInput struct {
	AdminID         string
	BillingRecordID uuid.UUID
	Reason          string
}

// BillingService defines the port for the subscription state machine
type BillingService interface {
	// Enroll grants a trial on first contact. Existing subscriptions never get a new trial.
	Enroll(ctx context.Context, admin domain.Admin) (*EnrollResult, error)

	// RequestPayment applies the guard table and creates a signed payment form
	RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentInitiation, error)

	// VerifyPayment checks an attempt with the gateway and records the outcome
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*ConfirmResult, error)

	// ConfirmPayment records a gateway outcome. Idempotent on the transaction reference.
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error)

	// Cancel moves the admin's subscription to cancelled
	Cancel(ctx context.Context, adminID string) (*domain.Subscription, error)

	// Suspend is an operator action blocking access
	Suspend(ctx context.Context, adminID string) (*domain.Subscription, error)

	// MarkPaymentDue moves an overdue trial or paid period to pending_payment
	MarkPaymentDue(ctx context.Context, subscriptionID uuid.UUID) (bool, error)

	// ExpireIfStale expires a pending_payment subscription with no attempt younger than
	// window. A non-positive window means domain.PaymentGraceWindow.
	ExpireIfStale(ctx context.Context, subscriptionID uuid.UUID, window time.Duration) (bool, error)

	Status(ctx context.Context, adminID string) (*StatusView, error)
	Access(ctx context.Context, adminID string) (*AccessView, error)
	BillingHistory(ctx context.Context, adminID string, limit int) ([]*domain.BillingRecord, error)
	PaymentHistory(ctx context.Context, adminID string, limit int) ([]*domain.PaymentAttempt, error)
	LookupPayment(ctx context.Context, adminID, transactionRef string) (*domain.PaymentAttempt, error)

	CreateRefundRequest(ctx context.Context, req RefundRequestInput) (*domain.RefundRequest, error)
	ListRefundRequests(ctx context.Context, adminID string) ([]*domain.RefundRequest, error)
}
