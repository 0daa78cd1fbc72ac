// Package fixtures provides builders for domain values used in tests.
package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// Admin returns a tenant admin with a derived email
func Admin(id string) domain.Admin {
	return domain.Admin{ID: id, Email: id + "@restaurant.test"}
}

// SubscriptionBuilder provides fluent API for building test subscriptions.
type SubscriptionBuilder struct {
	subscription *domain.Subscription
	now          time.Time
}

// NewSubscription creates a trial that started at now.
func NewSubscription(adminID string, now time.Time) *SubscriptionBuilder {
	return &SubscriptionBuilder{
		subscription: domain.NewTrialSubscription(Admin(adminID), now),
		now:          now,
	}
}

func (b *SubscriptionBuilder) WithID(id uuid.UUID) *SubscriptionBuilder {
	b.subscription.ID = id
	return b
}

func (b *SubscriptionBuilder) WithMonthlyFee(fee decimal.Decimal) *SubscriptionBuilder {
	b.subscription.MonthlyFee = fee
	return b
}

// TrialEndingAt moves the trial end, keeping the status at trial.
func (b *SubscriptionBuilder) TrialEndingAt(end time.Time) *SubscriptionBuilder {
	start := end.Add(-domain.TrialPeriod)
	b.subscription.TrialStart = &start
	b.subscription.TrialEnd = &end
	return b
}

// ActiveSince makes the subscription a paid period that started at start.
func (b *SubscriptionBuilder) ActiveSince(start time.Time) *SubscriptionBuilder {
	end := start.Add(domain.BillingPeriod)
	b.subscription.Status = domain.SubscriptionStatusActive
	b.subscription.SubscriptionStart = &start
	b.subscription.SubscriptionEnd = &end
	b.subscription.LastPaymentAt = &start
	b.subscription.NextPaymentAt = &end
	b.subscription.StatusChangedAt = start
	return b
}

// WithStatus sets the status and the time it changed.
func (b *SubscriptionBuilder) WithStatus(status domain.SubscriptionStatus, changedAt time.Time) *SubscriptionBuilder {
	b.subscription.Status = status
	b.subscription.StatusChangedAt = changedAt
	return b
}

func (b *SubscriptionBuilder) PendingPayment(since time.Time) *SubscriptionBuilder {
	return b.WithStatus(domain.SubscriptionStatusPendingPayment, since)
}

func (b *SubscriptionBuilder) Expired() *SubscriptionBuilder {
	return b.WithStatus(domain.SubscriptionStatusExpired, b.now)
}

func (b *SubscriptionBuilder) Cancelled() *SubscriptionBuilder {
	return b.WithStatus(domain.SubscriptionStatusCancelled, b.now)
}

func (b *SubscriptionBuilder) Build() *domain.Subscription {
	s := *b.subscription
	return &s
}
