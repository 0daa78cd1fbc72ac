package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

// SubscriptionStatus represents the subscription state
type SubscriptionStatus string

const (
	SubscriptionStatusTrial          SubscriptionStatus = "trial"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
	SubscriptionStatusSuspended      SubscriptionStatus = "suspended"
)

const (
	// TrialPeriod is the length of the free trial granted at first enrollment.
	TrialPeriod = 3 * timeutil.Day
	// BillingPeriod is the length of one paid subscription period.
	BillingPeriod = 30 * timeutil.Day
	// PaymentGraceWindow is how long an unresolved payment attempt blocks new attempts
	// and protects a pending_payment subscription from expiry.
	PaymentGraceWindow = 30 * time.Minute
	// DefaultCurrency is the billing currency for every tenant.
	DefaultCurrency = "NPR"
)

// DefaultMonthlyFee is the fixed monthly fee in DefaultCurrency.
var DefaultMonthlyFee = decimal.NewFromInt(999)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPendingPayment,
		SubscriptionStatusExpired, SubscriptionStatusCancelled, SubscriptionStatusSuspended:
		return true
	}
	return false
}

// Subscription is the single billing subscription owned by a tenant admin.
type Subscription struct {
	ID                uuid.UUID          `json:"id"`
	AdminID           string             `json:"admin_id"`
	AdminEmail        string             `json:"admin_email"`
	Status            SubscriptionStatus `json:"status"`
	TrialStart        *time.Time         `json:"trial_start,omitempty"`
	TrialEnd          *time.Time         `json:"trial_end,omitempty"`
	SubscriptionStart *time.Time         `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time         `json:"subscription_end,omitempty"`
	MonthlyFee        decimal.Decimal    `json:"monthly_fee"`
	Currency          string             `json:"currency"`
	LastPaymentAt     *time.Time         `json:"last_payment_at,omitempty"`
	NextPaymentAt     *time.Time         `json:"next_payment_at,omitempty"`
	StatusChangedAt   time.Time          `json:"status_changed_at"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewTrialSubscription enrolls an admin into a fresh trial starting at now.
func NewTrialSubscription(admin Admin, now time.Time) *Subscription {
	trialEnd := now.Add(TrialPeriod)
	return &Subscription{
		ID:              uuid.New(),
		AdminID:         admin.ID,
		AdminEmail:      admin.Email,
		Status:          SubscriptionStatusTrial,
		TrialStart:      &now,
		TrialEnd:        &trialEnd,
		MonthlyFee:      DefaultMonthlyFee,
		Currency:        DefaultCurrency,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewUnpaidSubscription creates a subscription for an admin who pays before ever enrolling.
// No trial is granted.
func NewUnpaidSubscription(admin Admin, now time.Time) *Subscription {
	return &Subscription{
		ID:              uuid.New(),
		AdminID:         admin.ID,
		AdminEmail:      admin.Email,
		Status:          SubscriptionStatusExpired,
		MonthlyFee:      DefaultMonthlyFee,
		Currency:        DefaultCurrency,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsTrialActive returns true while the subscription is in trial and trial_end is in the future.
func (s *Subscription) IsTrialActive(now time.Time) bool {
	return s.Status == SubscriptionStatusTrial && s.TrialEnd != nil && s.TrialEnd.After(now)
}

// IsSubscriptionActive returns true while the subscription is paid and not past its end.
func (s *Subscription) IsSubscriptionActive(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.SubscriptionEnd != nil && s.SubscriptionEnd.After(now)
}

// HasAccess is the tenant-wide access gate.
func (s *Subscription) HasAccess(now time.Time) bool {
	return s.IsTrialActive(now) || s.IsSubscriptionActive(now)
}

// IsOverdue reports a trial or paid period that has ended but not yet been swept.
func (s *Subscription) IsOverdue(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusTrial:
		return s.TrialEnd == nil || !s.TrialEnd.After(now)
	case SubscriptionStatusActive:
		return s.SubscriptionEnd == nil || !s.SubscriptionEnd.After(now)
	}
	return false
}

// TrialDaysRemaining returns max(0, floor((trial_end - now)/1d)).
func (s *Subscription) TrialDaysRemaining(now time.Time) int {
	if s.Status != SubscriptionStatusTrial || s.TrialEnd == nil {
		return 0
	}
	return timeutil.DaysUntil(now, *s.TrialEnd)
}

// SubscriptionDaysRemaining returns the whole days left in the paid period.
func (s *Subscription) SubscriptionDaysRemaining(now time.Time) int {
	if s.Status != SubscriptionStatusActive || s.SubscriptionEnd == nil {
		return 0
	}
	return timeutil.DaysUntil(now, *s.SubscriptionEnd)
}

// DaysRemaining returns the days left in whichever period currently grants access.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if s.Status == SubscriptionStatusTrial {
		return s.TrialDaysRemaining(now)
	}
	return s.SubscriptionDaysRemaining(now)
}

// CanReEnroll reports whether an existing row may start a new payment cycle.
func (s *Subscription) CanReEnroll(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusExpired, SubscriptionStatusCancelled, SubscriptionStatusPendingPayment:
		return true
	}
	return s.IsOverdue(now)
}

// transition moves the subscription to a new status and describes the change.
func (s *Subscription) transition(to SubscriptionStatus, eventType EventType, now time.Time) TransitionEvent {
	from := s.Status
	s.Status = to
	s.UpdatedAt = now
	if from != to {
		s.StatusChangedAt = now
	}
	return s.event(eventType, from, now)
}

func (s *Subscription) event(eventType EventType, from SubscriptionStatus, now time.Time) TransitionEvent {
	return TransitionEvent{
		Type:           eventType,
		SubscriptionID: s.ID,
		AdminID:        s.AdminID,
		AdminEmail:     s.AdminEmail,
		From:           from,
		To:             s.Status,
		Amount:         s.MonthlyFee,
		Currency:       s.Currency,
		PeriodEnd:      s.SubscriptionEnd,
		OccurredAt:     now,
	}
}

// Event describes the subscription as it stands, for outcomes that change no status.
func (s *Subscription) Event(eventType EventType, now time.Time) TransitionEvent {
	return s.event(eventType, s.Status, now)
}

// EnterPendingPayment is applied when a payment is requested. An active subscription stays
// active while it renews.
func (s *Subscription) EnterPendingPayment(now time.Time) TransitionEvent {
	if s.Status == SubscriptionStatusActive {
		return s.event(EventPaymentRequested, s.Status, now)
	}
	return s.transition(SubscriptionStatusPendingPayment, EventPaymentRequested, now)
}

// MarkPaymentDue moves an overdue trial or paid subscription to pending_payment.
// It returns false when the subscription is not overdue.
func (s *Subscription) MarkPaymentDue(now time.Time) (TransitionEvent, bool) {
	if !s.IsOverdue(now) {
		return TransitionEvent{}, false
	}
	return s.transition(SubscriptionStatusPendingPayment, EventPaymentDue, now), true
}

// Activate applies a confirmed payment made at paidAt. Activation and extension share the
// same arithmetic: the period restarts at the payment time, so late renewals never compound.
func (s *Subscription) Activate(paidAt time.Time) TransitionEvent {
	wasActive := s.IsSubscriptionActive(paidAt)
	end := paidAt.Add(BillingPeriod)
	start := paidAt
	last := paidAt
	s.SubscriptionStart = &start
	s.SubscriptionEnd = &end
	s.LastPaymentAt = &last
	s.NextPaymentAt = &end

	if wasActive {
		s.UpdatedAt = paidAt
		return s.event(EventExtended, SubscriptionStatusActive, paidAt)
	}
	return s.transition(SubscriptionStatusActive, EventActivated, paidAt)
}

// Expire moves the subscription to expired.
func (s *Subscription) Expire(now time.Time) TransitionEvent {
	return s.transition(SubscriptionStatusExpired, EventExpired, now)
}

// Cancel moves the subscription to cancelled. Cancelling twice is a no-op.
func (s *Subscription) Cancel(now time.Time) (TransitionEvent, bool) {
	if s.Status == SubscriptionStatusCancelled {
		return TransitionEvent{}, false
	}
	return s.transition(SubscriptionStatusCancelled, EventCancelled, now), true
}

// Suspend is an operator action that blocks access regardless of payment state.
func (s *Subscription) Suspend(now time.Time) (TransitionEvent, bool) {
	if s.Status == SubscriptionStatusSuspended {
		return TransitionEvent{}, false
	}
	return s.transition(SubscriptionStatusSuspended, EventSuspended, now), true
}
