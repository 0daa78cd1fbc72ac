package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAdmin = Admin{ID: "42", Email: "owner@example.com"}

func ptr(t time.Time) *time.Time { return &t }

// TestNewTrialSubscription tests trial arithmetic at enrollment
func TestNewTrialSubscription(t *testing.T) {
	enrolledAt := time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)

	sub := NewTrialSubscription(testAdmin, enrolledAt)

	require.NotNil(t, sub.TrialStart)
	require.NotNil(t, sub.TrialEnd)
	assert.Equal(t, SubscriptionStatusTrial, sub.Status)
	assert.Equal(t, enrolledAt, *sub.TrialStart)
	assert.Equal(t, enrolledAt.Add(72*time.Hour), *sub.TrialEnd)
	assert.True(t, sub.MonthlyFee.Equal(DefaultMonthlyFee))
	assert.Equal(t, "NPR", sub.Currency)
	assert.Equal(t, "owner@example.com", sub.AdminEmail)
	assert.Equal(t, 3, sub.TrialDaysRemaining(enrolledAt))
}

// TestSubscription_TrialDaysRemaining tests max(0, floor((trial_end-now)/1d))
func TestSubscription_TrialDaysRemaining(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sub := NewTrialSubscription(testAdmin, start)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"at enrollment", 0, 3},
		{"one second later", time.Second, 2},
		{"after 36 hours", 36 * time.Hour, 1},
		{"last hour", 71 * time.Hour, 0},
		{"after trial end", 100 * time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sub.TrialDaysRemaining(start.Add(tt.elapsed)))
		})
	}
}

// TestSubscription_HasAccess tests the access gate per status
func TestSubscription_HasAccess(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sub      Subscription
		expected bool
	}{
		{"trial in progress", Subscription{Status: SubscriptionStatusTrial, TrialEnd: ptr(now.Add(time.Hour))}, true},
		{"trial ended", Subscription{Status: SubscriptionStatusTrial, TrialEnd: ptr(now.Add(-time.Hour))}, false},
		{"active in period", Subscription{Status: SubscriptionStatusActive, SubscriptionEnd: ptr(now.Add(time.Hour))}, true},
		{"active past end", Subscription{Status: SubscriptionStatusActive, SubscriptionEnd: ptr(now.Add(-time.Hour))}, false},
		{"pending payment", Subscription{Status: SubscriptionStatusPendingPayment, SubscriptionEnd: ptr(now.Add(time.Hour))}, false},
		{"expired", Subscription{Status: SubscriptionStatusExpired}, false},
		{"cancelled", Subscription{Status: SubscriptionStatusCancelled}, false},
		{"suspended", Subscription{Status: SubscriptionStatusSuspended, SubscriptionEnd: ptr(now.Add(time.Hour))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.sub.HasAccess(now))
		})
	}
}

// TestSubscription_Activate tests activation from pending_payment
func TestSubscription_Activate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := NewTrialSubscription(testAdmin, start)
	sub.EnterPendingPayment(start.Add(time.Hour))
	require.Equal(t, SubscriptionStatusPendingPayment, sub.Status)

	paidAt := start.Add(2 * time.Hour)
	event := sub.Activate(paidAt)

	assert.Equal(t, EventActivated, event.Type)
	assert.Equal(t, SubscriptionStatusPendingPayment, event.From)
	assert.Equal(t, SubscriptionStatusActive, event.To)
	assert.Equal(t, SubscriptionStatusActive, sub.Status)
	assert.Equal(t, paidAt, *sub.SubscriptionStart)
	assert.Equal(t, paidAt.Add(BillingPeriod), *sub.SubscriptionEnd)
	assert.Equal(t, sub.SubscriptionStart.Add(30*24*time.Hour), *sub.SubscriptionEnd)
	assert.Equal(t, paidAt, *sub.LastPaymentAt)
	assert.Equal(t, *sub.SubscriptionEnd, *sub.NextPaymentAt)
	assert.Equal(t, paidAt, sub.StatusChangedAt)
}

// TestSubscription_Activate_RenewalDoesNotCompound tests late renewal arithmetic
func TestSubscription_Activate_RenewalDoesNotCompound(t *testing.T) {
	t0 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("renewal while active extends from payment time", func(t *testing.T) {
		sub := &Subscription{Status: SubscriptionStatusActive, SubscriptionStart: ptr(t0.Add(-BillingPeriod)), SubscriptionEnd: ptr(t0)}
		t1 := t0.Add(-2 * timeutilDay)

		event := sub.Activate(t1)

		assert.Equal(t, EventExtended, event.Type)
		assert.Equal(t, t1.Add(BillingPeriod), *sub.SubscriptionEnd)
	})

	t.Run("renewal after end does not stack on old end", func(t *testing.T) {
		sub := &Subscription{Status: SubscriptionStatusActive, SubscriptionStart: ptr(t0.Add(-BillingPeriod)), SubscriptionEnd: ptr(t0)}
		t1 := t0.Add(5 * timeutilDay)

		event := sub.Activate(t1)

		assert.Equal(t, EventActivated, event.Type)
		assert.Equal(t, t1.Add(BillingPeriod), *sub.SubscriptionEnd)
		assert.NotEqual(t, t0.Add(2*BillingPeriod), *sub.SubscriptionEnd)
	})
}

const timeutilDay = 24 * time.Hour

// TestSubscription_EnterPendingPayment tests that renewals keep active status
func TestSubscription_EnterPendingPayment(t *testing.T) {
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	active := &Subscription{Status: SubscriptionStatusActive, SubscriptionEnd: ptr(now.Add(timeutilDay))}
	event := active.EnterPendingPayment(now)
	assert.Equal(t, SubscriptionStatusActive, active.Status)
	assert.Equal(t, EventPaymentRequested, event.Type)

	expired := &Subscription{Status: SubscriptionStatusExpired}
	event = expired.EnterPendingPayment(now)
	assert.Equal(t, SubscriptionStatusPendingPayment, expired.Status)
	assert.Equal(t, SubscriptionStatusExpired, event.From)
}

// TestSubscription_MarkPaymentDue tests sweep pass one transitions
func TestSubscription_MarkPaymentDue(t *testing.T) {
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		sub       Subscription
		wantMoved bool
	}{
		{"trial ended", Subscription{Status: SubscriptionStatusTrial, TrialEnd: ptr(now.Add(-time.Minute))}, true},
		{"trial running", Subscription{Status: SubscriptionStatusTrial, TrialEnd: ptr(now.Add(time.Minute))}, false},
		{"active ended", Subscription{Status: SubscriptionStatusActive, SubscriptionEnd: ptr(now)}, true},
		{"active running", Subscription{Status: SubscriptionStatusActive, SubscriptionEnd: ptr(now.Add(time.Minute))}, false},
		{"expired untouched", Subscription{Status: SubscriptionStatusExpired}, false},
		{"cancelled untouched", Subscription{Status: SubscriptionStatusCancelled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := tt.sub
			before := sub.Status
			event, moved := sub.MarkPaymentDue(now)
			assert.Equal(t, tt.wantMoved, moved)
			if tt.wantMoved {
				assert.Equal(t, SubscriptionStatusPendingPayment, sub.Status)
				assert.Equal(t, EventPaymentDue, event.Type)
			} else {
				assert.Equal(t, before, sub.Status)
				assert.True(t, event.IsZero())
			}
		})
	}
}

// TestSubscription_Cancel tests idempotent cancellation
func TestSubscription_Cancel(t *testing.T) {
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	sub := NewTrialSubscription(testAdmin, now)

	event, changed := sub.Cancel(now)
	assert.True(t, changed)
	assert.Equal(t, EventCancelled, event.Type)
	assert.Equal(t, SubscriptionStatusCancelled, sub.Status)

	_, changed = sub.Cancel(now.Add(time.Hour))
	assert.False(t, changed)
}

// TestSubscription_CanReEnroll tests which statuses may start a new payment cycle
func TestSubscription_CanReEnroll(t *testing.T) {
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, (&Subscription{Status: SubscriptionStatusExpired}).CanReEnroll(now))
	assert.True(t, (&Subscription{Status: SubscriptionStatusCancelled}).CanReEnroll(now))
	assert.True(t, (&Subscription{Status: SubscriptionStatusPendingPayment}).CanReEnroll(now))
	assert.True(t, (&Subscription{Status: SubscriptionStatusTrial, TrialEnd: ptr(now.Add(-time.Hour))}).CanReEnroll(now))
	assert.False(t, (&Subscription{Status: SubscriptionStatusTrial, TrialEnd: ptr(now.Add(time.Hour))}).CanReEnroll(now))
	assert.False(t, (&Subscription{Status: SubscriptionStatusActive, SubscriptionEnd: ptr(now.Add(time.Hour))}).CanReEnroll(now))
	assert.False(t, (&Subscription{Status: SubscriptionStatusSuspended}).CanReEnroll(now))
}
