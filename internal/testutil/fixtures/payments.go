package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// AttemptBuilder provides fluent API for building payment attempts.
type AttemptBuilder struct {
	attempt *domain.PaymentAttempt
}

// NewAttempt creates an unresolved sandbox attempt for sub created at now.
func NewAttempt(sub *domain.Subscription, now time.Time) *AttemptBuilder {
	id := uuid.New()
	return &AttemptBuilder{attempt: &domain.PaymentAttempt{
		ID:             id,
		SubscriptionID: sub.ID,
		PaymentType:    domain.PaymentTypeSubscription,
		TransactionRef: domain.NewTransactionRef(sub.ID, id),
		Amount:         sub.MonthlyFee,
		Currency:       sub.Currency,
		ProductCode:    "EPAYTEST",
		Sandbox:        true,
		CreatedAt:      now,
	}}
}

func (b *AttemptBuilder) WithRef(ref string) *AttemptBuilder {
	b.attempt.TransactionRef = ref
	return b
}

func (b *AttemptBuilder) WithType(t domain.PaymentType) *AttemptBuilder {
	b.attempt.PaymentType = t
	return b
}

func (b *AttemptBuilder) WithAmount(amount decimal.Decimal) *AttemptBuilder {
	b.attempt.Amount = amount
	return b
}

func (b *AttemptBuilder) WithBillingRecord(id uuid.UUID) *AttemptBuilder {
	b.attempt.BillingRecordID = &id
	return b
}

// Resolved marks the attempt processed at the given time.
func (b *AttemptBuilder) Resolved(successful bool, at time.Time) *AttemptBuilder {
	b.attempt.IsSuccessful = successful
	b.attempt.ProcessedAt = &at
	return b
}

func (b *AttemptBuilder) Build() *domain.PaymentAttempt {
	a := *b.attempt
	return &a
}

// PendingRecord returns a pending billing record for sub covering one period from now.
func PendingRecord(sub *domain.Subscription, now time.Time) *domain.BillingRecord {
	return &domain.BillingRecord{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Amount:         sub.MonthlyFee,
		Currency:       sub.Currency,
		Method:         domain.PaymentMethodEsewa,
		Status:         domain.BillingStatusPending,
		PeriodStart:    now,
		PeriodEnd:      now.Add(domain.BillingPeriod),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
