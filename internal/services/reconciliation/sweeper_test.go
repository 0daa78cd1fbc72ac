package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/notify"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	svcports "github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/subscription"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/testutil/fixtures"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/testutil/memstore"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/testutil/mocks"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

// 2025-03-01 09:00 UTC, so "tomorrow" is 2025-03-02
var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	sweeper *Sweeper
	billing *subscription.Service
	store   *memstore.Store
	sink    *mocks.RecordingSink
	deduper *notify.MemoryDeduper
	clock   *timeutil.FixedClock
	logger  *mocks.MockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := mocks.NewMockGateway()
	f := &fixture{
		store:   memstore.New(),
		sink:    &mocks.RecordingSink{},
		deduper: notify.NewMemoryDeduper(),
		clock:   &timeutil.FixedClock{T: t0},
		logger:  mocks.NewMockLogger(),
	}
	f.billing = subscription.NewService(f.store, f.store.Subscriptions(), f.store.Ledger(), gw,
		&mocks.StaticResolver{Creds: gw.Sandbox}, f.sink, f.clock, f.logger)
	f.sweeper = NewSweeper(f.store, f.store.Subscriptions(), f.store.Ledger(), f.billing, f.sink, f.deduper, f.clock, f.logger)
	return f
}

func (f *fixture) seed(t *testing.T, sub *domain.Subscription) *domain.Subscription {
	t.Helper()
	require.NoError(t, f.store.Subscriptions().Create(context.Background(), nil, sub))
	return sub
}

func (f *fixture) status(t *testing.T, id uuid.UUID) domain.SubscriptionStatus {
	t.Helper()
	sub, err := f.store.Subscriptions().GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return sub.Status
}

func (f *fixture) run(t *testing.T, opts svcports.SweepOptions) *svcports.SweepReport {
	t.Helper()
	report, err := f.sweeper.Run(context.Background(), opts)
	require.NoError(t, err)
	return report
}

func TestRun_MarksOverduePeriods(t *testing.T) {
	f := newFixture(t)
	lapsedTrial := f.seed(t, fixtures.NewSubscription("admin-1", t0.Add(-4*24*time.Hour)).Build())
	lapsedPaid := f.seed(t, fixtures.NewSubscription("admin-2", t0.Add(-40*24*time.Hour)).ActiveSince(t0.Add(-31*24*time.Hour)).Build())
	running := f.seed(t, fixtures.NewSubscription("admin-3", t0.Add(-10*24*time.Hour)).ActiveSince(t0.Add(-5*24*time.Hour)).Build())

	report := f.run(t, svcports.SweepOptions{SkipReminders: true})

	assert.Equal(t, 2, report.MarkedPaymentDue)
	assert.Equal(t, 0, report.Expired, "freshly marked rows are inside the grace window")
	assert.Equal(t, domain.SubscriptionStatusPendingPayment, f.status(t, lapsedTrial.ID))
	assert.Equal(t, domain.SubscriptionStatusPendingPayment, f.status(t, lapsedPaid.ID))
	assert.Equal(t, domain.SubscriptionStatusActive, f.status(t, running.ID))

	again := f.run(t, svcports.SweepOptions{SkipReminders: true})
	assert.Equal(t, 0, again.MarkedPaymentDue, "the sweep is idempotent")
}

func TestRun_StaleCleanupReleasesRetry(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, fixtures.NewSubscription("admin-1", t0.Add(-10*24*time.Hour)).Expired().Build())

	init, err := f.billing.RequestPayment(context.Background(), svcports.PaymentRequest{
		Admin: fixtures.Admin("admin-1"), Type: domain.PaymentTypeSubscription, Amount: domain.DefaultMonthlyFee,
	})
	require.NoError(t, err)

	// the browser never came back from the gateway
	f.clock.Advance(45 * time.Minute)
	report := f.run(t, svcports.SweepOptions{SkipReminders: true})

	assert.EqualValues(t, 1, report.StaleAttempts)
	assert.EqualValues(t, 1, report.OrphanedRecords)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, domain.SubscriptionStatusExpired, f.status(t, sub.ID))

	_, err = f.store.Ledger().GetAttemptByRef(context.Background(), nil, init.TransactionRef)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	records, err := f.store.Ledger().ListBillingRecords(context.Background(), nil, sub.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.BillingStatusFailed, records[0].Status)

	retry, err := f.billing.RequestPayment(context.Background(), svcports.PaymentRequest{
		Admin: fixtures.Admin("admin-1"), Type: domain.PaymentTypeSubscription, Amount: domain.DefaultMonthlyFee,
	})
	require.NoError(t, err)
	assert.NotEqual(t, init.TransactionRef, retry.TransactionRef)
}

func TestRun_KeepsRecentAndSuccessfulAttempts(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, fixtures.NewSubscription("admin-1", t0.Add(-10*24*time.Hour)).PendingPayment(t0.Add(-2*time.Hour)).Build())
	ledger := f.store.Ledger()
	ctx := context.Background()

	recent := fixtures.NewAttempt(sub, t0.Add(-5*time.Minute)).Build()
	paid := fixtures.NewAttempt(sub, t0.Add(-3*time.Hour)).Resolved(true, t0.Add(-3*time.Hour)).Build()
	failed := fixtures.NewAttempt(sub, t0.Add(-3*time.Hour)).Resolved(false, t0.Add(-3*time.Hour)).Build()
	for _, a := range []*domain.PaymentAttempt{recent, paid, failed} {
		require.NoError(t, ledger.CreateAttempt(ctx, nil, a))
	}

	report := f.run(t, svcports.SweepOptions{SkipReminders: true})

	assert.EqualValues(t, 1, report.StaleAttempts)
	assert.Equal(t, 0, report.Expired, "an attempt in flight protects the subscription")
	assert.Equal(t, domain.SubscriptionStatusPendingPayment, f.status(t, sub.ID))

	_, err := ledger.GetAttemptByRef(ctx, nil, recent.TransactionRef)
	assert.NoError(t, err)
	_, err = ledger.GetAttemptByRef(ctx, nil, paid.TransactionRef)
	assert.NoError(t, err)
	_, err = ledger.GetAttemptByRef(ctx, nil, failed.TransactionRef)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestRun_NeverActivates(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, fixtures.NewSubscription("admin-1", t0.Add(-10*24*time.Hour)).PendingPayment(t0.Add(-2*time.Hour)).Build())
	require.NoError(t, f.store.Ledger().CreateAttempt(context.Background(), nil,
		fixtures.NewAttempt(sub, t0.Add(-time.Minute)).Build()))

	f.run(t, svcports.SweepOptions{})
	for _, typ := range f.sink.Types() {
		assert.NotEqual(t, domain.EventActivated, typ)
		assert.NotEqual(t, domain.EventExtended, typ)
	}
	assert.Equal(t, domain.SubscriptionStatusPendingPayment, f.status(t, sub.ID))
}

func TestRun_DryRunChangesNothing(t *testing.T) {
	f := newFixture(t)
	lapsed := f.seed(t, fixtures.NewSubscription("admin-1", t0.Add(-4*24*time.Hour)).Build())
	stale := f.seed(t, fixtures.NewSubscription("admin-2", t0.Add(-10*24*time.Hour)).PendingPayment(t0.Add(-2*time.Hour)).Build())
	old := fixtures.NewAttempt(stale, t0.Add(-2*time.Hour)).Build()
	require.NoError(t, f.store.Ledger().CreateAttempt(context.Background(), nil, old))
	ending := f.seed(t, fixtures.NewSubscription("admin-3", t0).TrialEndingAt(t0.Add(24*time.Hour)).Build())

	before := f.store.Transactions()
	report := f.run(t, svcports.SweepOptions{DryRun: true})

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.MarkedPaymentDue)
	assert.EqualValues(t, 1, report.StaleAttempts)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 1, report.RemindersSent)

	assert.Equal(t, before, f.store.Transactions())
	assert.Equal(t, domain.SubscriptionStatusTrial, f.status(t, lapsed.ID))
	assert.Equal(t, domain.SubscriptionStatusPendingPayment, f.status(t, stale.ID))
	assert.Equal(t, domain.SubscriptionStatusTrial, f.status(t, ending.ID))
	_, err := f.store.Ledger().GetAttemptByRef(context.Background(), nil, old.TransactionRef)
	assert.NoError(t, err)
	assert.Empty(t, f.sink.Events())
}

func TestRun_RemindersOncePerDay(t *testing.T) {
	f := newFixture(t)
	trial := f.seed(t, fixtures.NewSubscription("admin-1", t0).TrialEndingAt(t0.Add(20*time.Hour)).Build())
	paid := f.seed(t, fixtures.NewSubscription("admin-2", t0.Add(-40*24*time.Hour)).
		ActiveSince(t0.Add(-29*24*time.Hour + 2*time.Hour)).Build())
	f.seed(t, fixtures.NewSubscription("admin-3", t0).TrialEndingAt(t0.Add(3*24*time.Hour)).Build())
	f.seed(t, fixtures.NewSubscription("admin-4", t0).TrialEndingAt(t0.Add(2*time.Hour)).Build())

	report := f.run(t, svcports.SweepOptions{})
	assert.Equal(t, 2, report.RemindersSent)
	assert.Equal(t, 0, report.RemindersDuplicate)

	events := f.sink.Events()
	require.Len(t, events, 2)
	byType := map[domain.EventType]domain.TransitionEvent{}
	for _, e := range events {
		byType[e.Type] = e
	}
	require.Contains(t, byType, domain.EventTrialEndingSoon)
	require.Contains(t, byType, domain.EventRenewalReminder)
	assert.Equal(t, trial.ID, byType[domain.EventTrialEndingSoon].SubscriptionID)
	assert.Equal(t, *trial.TrialEnd, *byType[domain.EventTrialEndingSoon].PeriodEnd)
	assert.Equal(t, paid.ID, byType[domain.EventRenewalReminder].SubscriptionID)

	f.clock.Advance(time.Hour)
	again := f.run(t, svcports.SweepOptions{})
	assert.Equal(t, 0, again.RemindersSent)
	assert.Equal(t, 2, again.RemindersDuplicate)
	assert.Len(t, f.sink.Events(), 2)
}

func TestRun_SkipReminders(t *testing.T) {
	f := newFixture(t)
	f.seed(t, fixtures.NewSubscription("admin-1", t0).TrialEndingAt(t0.Add(20*time.Hour)).Build())

	report := f.run(t, svcports.SweepOptions{SkipReminders: true})
	assert.Equal(t, 0, report.RemindersSent)
	assert.Empty(t, f.sink.Events())
}

type failingDeduper struct{}

func (failingDeduper) MarkSent(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestRun_RowErrorsAreCollected(t *testing.T) {
	f := newFixture(t)
	f.sweeper.deduper = failingDeduper{}
	lapsed := f.seed(t, fixtures.NewSubscription("admin-1", t0.Add(-4*24*time.Hour)).Build())
	other := f.seed(t, fixtures.NewSubscription("admin-2", t0.Add(-5*24*time.Hour)).Build())
	f.seed(t, fixtures.NewSubscription("admin-3", t0).TrialEndingAt(t0.Add(20*time.Hour)).Build())

	// one of the two overdue rows fails to save
	f.store.FailNext("Subscriptions.Update", errors.New("disk full"))

	report, err := f.sweeper.Run(context.Background(), svcports.SweepOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.MarkedPaymentDue)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "mark_payment_due")
	assert.Contains(t, report.Errors[1], "reminder")

	marked := 0
	for _, id := range []uuid.UUID{lapsed.ID, other.ID} {
		if f.status(t, id) == domain.SubscriptionStatusPendingPayment {
			marked++
		}
	}
	assert.Equal(t, 1, marked)
}

func TestRun_PassFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.store.FailNext("Ledger.DeleteStaleAttempts", errors.New("connection reset"))

	report, err := f.sweeper.Run(context.Background(), svcports.SweepOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanup stale attempts")
	assert.NotNil(t, report)
}

func TestRun_ExpiryHonoursSweepWindow(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, fixtures.NewSubscription("admin-1", t0.Add(-10*24*time.Hour)).PendingPayment(t0.Add(-2*time.Hour)).Build())
	ctx := context.Background()

	attempt := fixtures.NewAttempt(sub, t0.Add(-45*time.Minute)).Build()
	require.NoError(t, f.store.Ledger().CreateAttempt(ctx, nil, attempt))

	report := f.run(t, svcports.SweepOptions{OlderThan: time.Hour, SkipReminders: true})

	assert.EqualValues(t, 0, report.StaleAttempts)
	assert.Equal(t, 0, report.Expired, "an attempt younger than the sweep window still protects the subscription")
	assert.Equal(t, domain.SubscriptionStatusPendingPayment, f.status(t, sub.ID))
	_, err := f.store.Ledger().GetAttemptByRef(ctx, nil, attempt.TransactionRef)
	assert.NoError(t, err)

	report = f.run(t, svcports.SweepOptions{OlderThan: 30 * time.Minute, SkipReminders: true})
	assert.EqualValues(t, 1, report.StaleAttempts)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, domain.SubscriptionStatusExpired, f.status(t, sub.ID))
}
