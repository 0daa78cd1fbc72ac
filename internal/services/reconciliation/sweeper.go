// Package reconciliation runs the externally triggered sweep that moves lapsed
// subscriptions forward, clears abandoned payment attempts and sends reminders.
// The sweep never activates a subscription.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	svcports "github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/observability"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

const (
	// DefaultBatchSize bounds the rows each pass reads per run
	DefaultBatchSize = 500
	reminderTTL      = 48 * time.Hour
)

// Lifecycle applies sweep transitions to a single subscription in its own transaction
type Lifecycle interface {
	MarkPaymentDue(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
	ExpireIfStale(ctx context.Context, subscriptionID uuid.UUID, window time.Duration) (bool, error)
}

// Sweeper implements svcports.Sweeper
type Sweeper struct {
	db        ports.DBPort
	subs      ports.SubscriptionRepository
	ledger    ports.LedgerRepository
	lifecycle Lifecycle
	events    ports.EventSink
	deduper   ports.ReminderDeduper
	clock     timeutil.Clock
	logger    ports.Logger
	batchSize int
}

// NewSweeper creates a sweeper. A nil deduper disables reminders.
func NewSweeper(
	db ports.DBPort,
	subs ports.SubscriptionRepository,
	ledger ports.LedgerRepository,
	lifecycle Lifecycle,
	events ports.EventSink,
	deduper ports.ReminderDeduper,
	clock timeutil.Clock,
	logger ports.Logger,
) *Sweeper {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if events == nil {
		events = nopSink{}
	}
	return &Sweeper{
		db:        db,
		subs:      subs,
		ledger:    ledger,
		lifecycle: lifecycle,
		events:    events,
		deduper:   deduper,
		clock:     clock,
		logger:    logger,
		batchSize: DefaultBatchSize,
	}
}

type nopSink struct{}

func (nopSink) Publish(context.Context, ...domain.TransitionEvent) {}

// Run executes the three passes in order. Row-level failures are collected in the
// report; only a failure that stops a whole pass is returned.
func (s *Sweeper) Run(ctx context.Context, opts svcports.SweepOptions) (*svcports.SweepReport, error) {
	if opts.OlderThan <= 0 {
		opts.OlderThan = domain.PaymentGraceWindow
	}
	report := &svcports.SweepReport{StartedAt: s.clock.Now(), DryRun: opts.DryRun}
	started := time.Now()
	defer func() {
		report.Duration = time.Since(started)
		observability.ObserveSweepDuration(report.Duration)
	}()

	s.logger.Info("reconciliation sweep started",
		ports.Bool("dry_run", opts.DryRun),
		ports.Duration("older_than", opts.OlderThan))

	if err := s.markPaymentDue(ctx, opts, report); err != nil {
		return report, fmt.Errorf("mark payment due: %w", err)
	}
	if err := s.cleanupStale(ctx, opts, report); err != nil {
		return report, fmt.Errorf("cleanup stale attempts: %w", err)
	}
	if !opts.SkipReminders && s.deduper != nil {
		if err := s.sendReminders(ctx, opts, report); err != nil {
			return report, fmt.Errorf("send reminders: %w", err)
		}
	}

	s.logger.Info("reconciliation sweep finished",
		ports.Bool("dry_run", opts.DryRun),
		ports.Int("marked_payment_due", report.MarkedPaymentDue),
		ports.Int64("stale_attempts", report.StaleAttempts),
		ports.Int64("orphaned_records", report.OrphanedRecords),
		ports.Int("expired", report.Expired),
		ports.Int("reminders_sent", report.RemindersSent),
		ports.Int("errors", len(report.Errors)))
	return report, nil
}

// markPaymentDue moves every trial and paid period that has ended to pending_payment.
func (s *Sweeper) markPaymentDue(ctx context.Context, opts svcports.SweepOptions, report *svcports.SweepReport) error {
	overdue, err := s.subs.ListOverdue(ctx, nil, s.clock.Now(), s.batchSize)
	if err != nil {
		return err
	}
	for _, sub := range overdue {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.DryRun {
			report.MarkedPaymentDue++
			continue
		}
		changed, err := s.lifecycle.MarkPaymentDue(ctx, sub.ID)
		if err != nil {
			s.rowError(report, "mark_payment_due", sub.ID, err)
			continue
		}
		if changed {
			report.MarkedPaymentDue++
		}
	}
	observability.RecordSweepActions("mark_payment_due", int64(report.MarkedPaymentDue), opts.DryRun)
	return nil
}

// cleanupStale deletes abandoned attempts, fails the billing records they leave behind
// and then expires pending_payment subscriptions with nothing left in flight.
func (s *Sweeper) cleanupStale(ctx context.Context, opts svcports.SweepOptions, report *svcports.SweepReport) error {
	now := s.clock.Now()
	cutoff := now.Add(-opts.OlderThan)

	if opts.DryRun {
		n, err := s.ledger.CountStaleAttempts(ctx, nil, cutoff)
		if err != nil {
			return err
		}
		report.StaleAttempts = n
	} else {
		err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			deleted, err := s.ledger.DeleteStaleAttempts(ctx, tx, cutoff)
			if err != nil {
				return fmt.Errorf("delete attempts: %w", err)
			}
			orphaned, err := s.ledger.FailOrphanedBillingRecords(ctx, tx, cutoff, now)
			if err != nil {
				return fmt.Errorf("fail orphaned records: %w", err)
			}
			report.StaleAttempts, report.OrphanedRecords = deleted, orphaned
			return nil
		})
		if err != nil {
			return err
		}
	}
	observability.RecordSweepActions("delete_stale_attempts", report.StaleAttempts, opts.DryRun)
	observability.RecordSweepActions("fail_orphaned_records", report.OrphanedRecords, opts.DryRun)

	pending, err := s.subs.ListByStatus(ctx, nil, domain.SubscriptionStatusPendingPayment, s.batchSize)
	if err != nil {
		return err
	}
	for _, sub := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.DryRun {
			stale, err := s.wouldExpire(ctx, sub, now, opts.OlderThan)
			if err != nil {
				s.rowError(report, "expire", sub.ID, err)
			} else if stale {
				report.Expired++
			}
			continue
		}
		expired, err := s.lifecycle.ExpireIfStale(ctx, sub.ID, opts.OlderThan)
		if err != nil {
			s.rowError(report, "expire", sub.ID, err)
			continue
		}
		if expired {
			report.Expired++
		}
	}
	observability.RecordSweepActions("expire", int64(report.Expired), opts.DryRun)
	return nil
}

func (s *Sweeper) wouldExpire(ctx context.Context, sub *domain.Subscription, now time.Time, window time.Duration) (bool, error) {
	if now.Sub(sub.StatusChangedAt) < window {
		return false, nil
	}
	inFlight, err := s.ledger.CountInFlightAttempts(ctx, nil, sub.ID, now.Add(-window))
	if err != nil {
		return false, err
	}
	return inFlight == 0, nil
}

// sendReminders notifies admins whose trial or paid period ends during the next
// calendar day. Each reminder is sent at most once per subscription and day.
func (s *Sweeper) sendReminders(ctx context.Context, opts svcports.SweepOptions, report *svcports.SweepReport) error {
	now := s.clock.Now()
	tomorrow := now.Add(timeutil.Day)
	ending, err := s.subs.ListEndingBetween(ctx, nil, timeutil.StartOfDay(tomorrow), timeutil.EndOfDay(tomorrow))
	if err != nil {
		return err
	}

	for _, sub := range ending {
		event := reminderFor(sub, now)
		if event.IsZero() {
			continue
		}
		if opts.DryRun {
			report.RemindersSent++
			continue
		}

		key := fmt.Sprintf("%s:%s:%s", event.Type, sub.ID, timeutil.DateKey(*event.PeriodEnd))
		first, err := s.deduper.MarkSent(ctx, key, reminderTTL)
		if err != nil {
			s.rowError(report, "reminder", sub.ID, err)
			continue
		}
		if !first {
			report.RemindersDuplicate++
			continue
		}
		s.events.Publish(ctx, event)
		report.RemindersSent++
	}
	observability.RecordSweepActions("reminder", int64(report.RemindersSent), opts.DryRun)
	return nil
}

func reminderFor(sub *domain.Subscription, now time.Time) domain.TransitionEvent {
	switch sub.Status {
	case domain.SubscriptionStatusTrial:
		if sub.TrialEnd == nil {
			return domain.TransitionEvent{}
		}
		event := sub.Event(domain.EventTrialEndingSoon, now)
		event.PeriodEnd = sub.TrialEnd
		return event
	case domain.SubscriptionStatusActive:
		if sub.SubscriptionEnd == nil {
			return domain.TransitionEvent{}
		}
		return sub.Event(domain.EventRenewalReminder, now)
	}
	return domain.TransitionEvent{}
}

func (s *Sweeper) rowError(report *svcports.SweepReport, pass string, id uuid.UUID, err error) {
	report.Errors = append(report.Errors, fmt.Sprintf("%s %s: %v", pass, id, err))
	s.logger.Error("sweep row failed",
		ports.String("pass", pass),
		ports.String("subscription_id", id.String()),
		ports.Err(err))
}

var _ svcports.Sweeper = (*Sweeper)(nil)
