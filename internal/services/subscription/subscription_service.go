package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	svcports "github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/observability"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/resilience"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Service implements svcports.BillingService
type Service struct {
	db      ports.DBPort
	subs    ports.SubscriptionRepository
	ledger  ports.LedgerRepository
	gateway ports.GatewayAdapter
	creds   ports.CredentialResolver
	events  ports.EventSink
	clock   timeutil.Clock
	logger  ports.Logger

	// retryBackoff spaces the single retry after a concurrent modification
	retryBackoff resilience.BackoffStrategy
}

// NewService creates a new subscription service
func NewService(
	db ports.DBPort,
	subs ports.SubscriptionRepository,
	ledger ports.LedgerRepository,
	gateway ports.GatewayAdapter,
	creds ports.CredentialResolver,
	events ports.EventSink,
	clock timeutil.Clock,
	logger ports.Logger,
) *Service {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if events == nil {
		events = discardSink{}
	}
	return &Service{
		db:      db,
		subs:    subs,
		ledger:  ledger,
		gateway: gateway,
		creds:   creds,
		events:  events,
		clock:   clock,
		logger:  logger,

		retryBackoff: resilience.DefaultExponentialBackoff(),
	}
}

type discardSink struct{}

func (discardSink) Publish(context.Context, ...domain.TransitionEvent) {}

// withRetry runs fn in a transaction and retries once when the row was modified
// concurrently. fn must reset any state it accumulates.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	err := s.db.WithTransaction(ctx, fn)
	if !errors.Is(err, domain.ErrConcurrentModification) {
		return err
	}
	delay := s.retryBackoff.NextDelay(0)
	s.logger.Warn("concurrent modification, retrying transaction",
		ports.String("operation", op),
		ports.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return err
	case <-timer.C:
	}
	return s.db.WithTransaction(ctx, fn)
}

func (s *Service) publish(ctx context.Context, events []domain.TransitionEvent) {
	if len(events) > 0 {
		s.events.Publish(ctx, events...)
	}
}

// Enroll grants a trial on first contact. An existing row never gets a second trial.
func (s *Service) Enroll(ctx context.Context, admin domain.Admin) (*svcports.EnrollResult, error) {
	return s.enroll(ctx, admin, true)
}

func (s *Service) enroll(ctx context.Context, admin domain.Admin, retryCreate bool) (*svcports.EnrollResult, error) {
	var (
		result *svcports.EnrollResult
		events []domain.TransitionEvent
	)

	err := s.withRetry(ctx, "enroll", func(ctx context.Context, tx pgx.Tx) error {
		result, events = nil, nil
		now := s.clock.Now()

		existing, err := s.subs.LockByAdminID(ctx, tx, admin.ID)
		switch {
		case errors.Is(err, domain.ErrSubscriptionNotFound):
			sub := domain.NewTrialSubscription(admin, now)
			if err := s.subs.Create(ctx, tx, sub); err != nil {
				return fmt.Errorf("create subscription: %w", err)
			}
			result = &svcports.EnrollResult{
				Subscription: sub,
				Created:      true,
				Message:      "Free trial activated. You have 3 days of full access.",
			}
			events = append(events, sub.Event(domain.EventTrialStarted, now))
			return nil
		case err != nil:
			return fmt.Errorf("lock subscription: %w", err)
		}

		if existing.IsSubscriptionActive(now) {
			return domain.ErrSubscriptionActive.
				WithDetail("subscription_end", existing.SubscriptionEnd)
		}
		if existing.IsTrialActive(now) {
			return domain.ErrTrialAlreadyActive.
				WithDetail("trial_end", existing.TrialEnd).
				WithDetail("days_remaining", existing.TrialDaysRemaining(now))
		}
		if !existing.CanReEnroll(now) && existing.Status != domain.SubscriptionStatusSuspended {
			return domain.ErrSubscriptionNotRenewable
		}
		result = &svcports.EnrollResult{
			Subscription: existing,
			CanRenew:     true,
			Message:      "You can renew your subscription now.",
		}
		return nil
	})
	if retryCreate && errors.Is(err, domain.ErrDuplicateTransaction) {
		// lost the race to create the row; the winner's row answers the request
		return s.enroll(ctx, admin, false)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	if result.Created {
		s.logger.Info("trial started",
			ports.String("admin_id", admin.ID),
			ports.String("subscription_id", result.Subscription.ID.String()))
	}
	return result, nil
}

// RequestPayment applies the guard table and creates a pending billing record, a
// payment attempt and the signed gateway form. A rejected request writes nothing.
func (s *Service) RequestPayment(ctx context.Context, req svcports.PaymentRequest) (*svcports.PaymentInitiation, error) {
	if req.Type == "" {
		req.Type = domain.PaymentTypeSubscription
	}
	if !req.Type.Valid() {
		return nil, domain.NewValidationError("payment_type", "unknown payment type")
	}
	if req.Admin.ID == "" {
		return nil, domain.ErrAuthMissing
	}

	var (
		initiation *svcports.PaymentInitiation
		events     []domain.TransitionEvent
	)

	err := s.withRetry(ctx, "request_payment", func(ctx context.Context, tx pgx.Tx) error {
		initiation, events = nil, nil
		now := s.clock.Now()

		sub, err := s.subs.LockByAdminID(ctx, tx, req.Admin.ID)
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			sub = domain.NewUnpaidSubscription(req.Admin, now)
			if err := s.subs.Create(ctx, tx, sub); err != nil {
				return fmt.Errorf("create subscription: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("lock subscription: %w", err)
		}

		if err := validateAmount(sub, req); err != nil {
			return err
		}
		inFlight, err := s.ledger.CountInFlightAttempts(ctx, tx, sub.ID, now.Add(-domain.PaymentGraceWindow))
		if err != nil {
			return fmt.Errorf("count in-flight attempts: %w", err)
		}
		if inFlight > 0 {
			return domain.ErrPaymentProcessing
		}
		if err := checkGuard(sub, req.Type, now); err != nil {
			return err
		}

		creds, err := s.creds.ResolveGatewayCredentials(ctx, sub.AdminID)
		if err != nil {
			return fmt.Errorf("resolve gateway credentials: %w", err)
		}

		if !sub.HasAccess(now) {
			// a lapsed or stale row restarts its pending window from this request
			sub.Expire(now)
		}
		event := sub.EnterPendingPayment(now)

		record := &domain.BillingRecord{
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
		if err := s.ledger.CreateBillingRecord(ctx, tx, record); err != nil {
			return fmt.Errorf("create billing record: %w", err)
		}

		attemptID := uuid.New()
		attempt := &domain.PaymentAttempt{
			ID:              attemptID,
			SubscriptionID:  sub.ID,
			BillingRecordID: &record.ID,
			PaymentType:     req.Type,
			TransactionRef:  domain.NewTransactionRef(sub.ID, attemptID),
			Amount:          sub.MonthlyFee,
			Currency:        sub.Currency,
			ProductCode:     creds.ProductCode,
			Sandbox:         creds.Sandbox,
			CreatedAt:       now,
		}
		if err := s.ledger.CreateAttempt(ctx, tx, attempt); err != nil {
			return fmt.Errorf("create payment attempt: %w", err)
		}
		if err := s.subs.Update(ctx, tx, sub); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}

		form, err := s.gateway.BuildPaymentForm(creds, ports.PaymentFormRequest{
			Amount:         attempt.Amount,
			TransactionRef: attempt.TransactionRef,
		})
		if err != nil {
			return fmt.Errorf("build payment form: %w", err)
		}

		initiation = &svcports.PaymentInitiation{
			TransactionRef: attempt.TransactionRef,
			Amount:         attempt.Amount,
			Currency:       attempt.Currency,
			PaymentType:    attempt.PaymentType,
			Sandbox:        attempt.Sandbox,
			Status:         sub.Status,
			Form:           form,
		}
		events = append(events, event.WithTransaction(attempt.TransactionRef, attempt.Amount))
		return nil
	})
	if err != nil {
		result := "error"
		if domain.IsGuardRejection(err) {
			result = "rejected"
		} else if domain.IsValidationError(err) {
			result = "invalid"
		}
		observability.RecordPaymentRequest(string(req.Type), result)
		s.logger.Warn("payment request refused",
			ports.String("admin_id", req.Admin.ID),
			ports.String("payment_type", string(req.Type)),
			ports.Err(err))
		return nil, err
	}

	observability.RecordPaymentRequest(string(req.Type), "accepted")
	s.publish(ctx, events)
	s.logger.Info("payment requested",
		ports.String("admin_id", req.Admin.ID),
		ports.String("transaction_ref", initiation.TransactionRef),
		ports.String("payment_type", string(initiation.PaymentType)),
		ports.Bool("sandbox", initiation.Sandbox))
	return initiation, nil
}

func validateAmount(sub *domain.Subscription, req svcports.PaymentRequest) error {
	if !req.Amount.Equal(sub.MonthlyFee) {
		return domain.NewValidationError("amount",
			fmt.Sprintf("amount must equal the monthly fee of %s %s", sub.MonthlyFee.StringFixed(2), sub.Currency))
	}
	if req.Currency != "" && !strings.EqualFold(req.Currency, sub.Currency) {
		return domain.NewValidationError("currency", "currency must be "+sub.Currency)
	}
	return nil
}

// checkGuard decides whether a payment of type t may start from the subscription's
// current state. A trial or paid period that ended but was not swept counts as expired.
func checkGuard(sub *domain.Subscription, t domain.PaymentType, now time.Time) error {
	switch {
	case sub.IsTrialActive(now):
		switch t {
		case domain.PaymentTypeTrialActivation:
			return nil
		case domain.PaymentTypeSubscription:
			return domain.ErrTrialStillActive.WithDetail("trial_end", sub.TrialEnd)
		}
	case sub.IsSubscriptionActive(now):
		switch t {
		case domain.PaymentTypeRenewal:
			return nil
		case domain.PaymentTypeSubscription:
			return domain.ErrSubscriptionActive.WithDetail("subscription_end", sub.SubscriptionEnd)
		}
	default:
		if t == domain.PaymentTypeSubscription {
			return nil
		}
	}
	return domain.ErrPaymentTypeNotAllowed.
		WithDetail("status", string(sub.Status)).
		WithDetail("payment_type", string(t))
}

// VerifyPayment checks an attempt with the gateway and records the outcome. The gateway
// call runs outside any transaction.
func (s *Service) VerifyPayment(ctx context.Context, req svcports.VerifyPaymentRequest) (*svcports.ConfirmResult, error) {
	ref := strings.TrimSpace(req.TransactionRef)
	if ref == "" && req.Callback != nil {
		ref = req.Callback.TransactionRef
	}
	if ref == "" {
		return nil, domain.NewValidationError("transaction_id", "transaction reference is required")
	}

	attempt, sub, err := s.loadAttempt(ctx, ref)
	if err != nil {
		return nil, err
	}
	if req.AdminID != "" && sub.AdminID != req.AdminID {
		s.logger.Warn("payment verification by non-owner refused",
			ports.String("transaction_ref", ref),
			ports.String("admin_id", req.AdminID))
		return nil, domain.ErrForbidden
	}

	if err := checkCallback(attempt, req.Callback); err != nil {
		s.logger.Warn("security anomaly: callback disagrees with stored payment attempt",
			ports.String("transaction_ref", ref),
			ports.String("admin_id", sub.AdminID),
			ports.Err(err))
		return nil, err
	}

	if attempt.IsResolved() {
		return priorOutcome(attempt, sub), nil
	}

	creds, ok := s.verificationCredentials(ctx, sub, attempt)
	var result ports.VerifyResult
	if !ok {
		result = ports.VerifyResult{
			Outcome: ports.VerifyIndeterminate,
			Message: "gateway credentials changed since the payment was initiated",
			Err:     domain.ErrGatewayUnavailable,
		}
	} else {
		result = s.gateway.Verify(ctx, creds, ports.VerifyRequest{
			TransactionRef: ref,
			Amount:         attempt.Amount,
			Callback:       req.Callback,
		})
	}

	if result.Err != nil && errors.Is(result.Err, domain.ErrSignatureMismatch) {
		s.logger.Warn("security anomaly: gateway callback signature mismatch",
			ports.String("transaction_ref", ref),
			ports.String("admin_id", sub.AdminID))
		result.Outcome = ports.VerifyFailure
		if result.Message == "" {
			result.Message = "callback signature mismatch"
		}
		if _, err := s.ConfirmPayment(ctx, svcports.ConfirmRequest{TransactionRef: ref, Result: result}); err != nil {
			return nil, err
		}
		return nil, domain.ErrSignatureMismatch
	}

	return s.ConfirmPayment(ctx, svcports.ConfirmRequest{TransactionRef: ref, Result: result})
}

// verificationCredentials returns the credentials the attempt was initiated with.
// ok is false when the tenant's credentials no longer match the attempt.
func (s *Service) verificationCredentials(ctx context.Context, sub *domain.Subscription, attempt *domain.PaymentAttempt) (domain.GatewayCredentials, bool) {
	if attempt.Sandbox {
		return s.gateway.SandboxCredentials(), true
	}
	creds, err := s.creds.ResolveGatewayCredentials(ctx, sub.AdminID)
	if err != nil {
		s.logger.Warn("resolve gateway credentials for verification failed",
			ports.String("transaction_ref", attempt.TransactionRef),
			ports.Err(err))
		return domain.GatewayCredentials{}, false
	}
	if creds.Sandbox || creds.ProductCode != attempt.ProductCode {
		s.logger.Warn("tenant gateway credentials changed since initiation",
			ports.String("transaction_ref", attempt.TransactionRef),
			ports.String("admin_id", sub.AdminID))
		return domain.GatewayCredentials{}, false
	}
	return creds, true
}

// checkCallback rejects a callback whose amount or product code disagrees with the attempt.
func checkCallback(attempt *domain.PaymentAttempt, cb *ports.CallbackData) error {
	if cb == nil {
		return nil
	}
	if cb.TransactionRef != "" && cb.TransactionRef != attempt.TransactionRef {
		return domain.ErrDuplicateTransaction.WithDetail("reason", "transaction reference mismatch")
	}
	if cb.TotalAmount != "" {
		amount, err := decimal.NewFromString(strings.ReplaceAll(cb.TotalAmount, ",", ""))
		if err != nil || !amount.Equal(attempt.Amount) {
			return domain.ErrDuplicateTransaction.WithDetail("reason", "amount mismatch")
		}
	}
	if cb.ProductCode != "" && attempt.ProductCode != "" && cb.ProductCode != attempt.ProductCode {
		return domain.ErrDuplicateTransaction.WithDetail("reason", "product code mismatch")
	}
	return nil
}

func priorOutcome(attempt *domain.PaymentAttempt, sub *domain.Subscription) *svcports.ConfirmResult {
	return &svcports.ConfirmResult{
		TransactionRef: attempt.TransactionRef,
		Outcome:        attempt.Outcome(),
		Duplicate:      true,
		Message:        "payment already processed",
		GatewayRefID:   attempt.GatewayRefID,
		Subscription:   sub,
	}
}

// ConfirmPayment records a gateway outcome. The first resolution wins; later calls return
// it unchanged. A failed payment never changes the subscription's status.
func (s *Service) ConfirmPayment(ctx context.Context, req svcports.ConfirmRequest) (*svcports.ConfirmResult, error) {
	found, err := s.ledger.GetAttemptByRef(ctx, nil, req.TransactionRef)
	if err != nil {
		return nil, err
	}

	var (
		result        *svcports.ConfirmResult
		events        []domain.TransitionEvent
		indeterminate bool
	)

	err = s.withRetry(ctx, "confirm_payment", func(ctx context.Context, tx pgx.Tx) error {
		result, events, indeterminate = nil, nil, false
		now := s.clock.Now()

		sub, err := s.subs.LockByID(ctx, tx, found.SubscriptionID)
		if err != nil {
			return fmt.Errorf("lock subscription: %w", err)
		}
		attempt, err := s.ledger.LockAttemptByRef(ctx, tx, req.TransactionRef)
		if err != nil {
			return fmt.Errorf("lock payment attempt: %w", err)
		}
		if attempt.IsResolved() {
			result = priorOutcome(attempt, sub)
			return nil
		}

		verdict := req.Result
		if verdict.Outcome == ports.VerifyIndeterminate || verdict.Outcome == "" {
			indeterminate = true
			attempt.ErrorMessage = describe(verdict)
			return s.ledger.UpdateAttempt(ctx, tx, attempt)
		}

		succeeded := verdict.Outcome == ports.VerifySuccess
		attempt.IsSuccessful = succeeded
		attempt.ProcessedAt = &now
		attempt.GatewayRefID = verdict.GatewayRefID
		attempt.ResponseSnapshot = verdict.Raw
		if !succeeded {
			attempt.ErrorMessage = describe(verdict)
		}
		if err := s.ledger.UpdateAttempt(ctx, tx, attempt); err != nil {
			return fmt.Errorf("update payment attempt: %w", err)
		}

		if attempt.BillingRecordID != nil {
			if err := s.settleBillingRecord(ctx, tx, *attempt.BillingRecordID, succeeded, now); err != nil {
				return err
			}
		}

		if succeeded {
			event := sub.Activate(now)
			if err := s.subs.Update(ctx, tx, sub); err != nil {
				return fmt.Errorf("update subscription: %w", err)
			}
			events = append(events, event.WithTransaction(attempt.TransactionRef, attempt.Amount))
		} else {
			events = append(events, sub.Event(domain.EventPaymentFailed, now).
				WithTransaction(attempt.TransactionRef, attempt.Amount))
		}

		result = &svcports.ConfirmResult{
			TransactionRef: attempt.TransactionRef,
			Outcome:        attempt.Outcome(),
			Code:           verdict.Code,
			Message:        verdict.Message,
			GatewayRefID:   attempt.GatewayRefID,
			Subscription:   sub,
		}
		return nil
	})
	if err != nil {
		s.logger.Error("payment confirmation failed",
			ports.String("transaction_ref", req.TransactionRef),
			ports.Err(err))
		return nil, err
	}

	if indeterminate {
		s.logger.Warn("payment verification indeterminate, attempt left unresolved",
			ports.String("transaction_ref", req.TransactionRef),
			ports.String("response_code", req.Result.Code))
		cause := req.Result.Err
		if cause == nil {
			cause = errors.New(describe(req.Result))
		}
		return nil, domain.WrapError(domain.ErrorCodeGatewayUnavailable, domain.ErrGatewayUnavailable.Message, cause).
			WithDetail("code", req.Result.Code)
	}

	if result.Duplicate {
		s.logger.Info("payment already resolved",
			ports.String("transaction_ref", req.TransactionRef),
			ports.String("outcome", string(result.Outcome)))
		return result, nil
	}

	amount, _ := found.Amount.Float64()
	observability.RecordPaymentConfirmation(string(result.Outcome), amount, found.Currency)
	s.publish(ctx, events)
	s.logger.Info("payment resolved",
		ports.String("transaction_ref", req.TransactionRef),
		ports.String("outcome", string(result.Outcome)),
		ports.String("subscription_status", string(result.Subscription.Status)))
	return result, nil
}

func (s *Service) settleBillingRecord(ctx context.Context, tx pgx.Tx, id uuid.UUID, succeeded bool, now time.Time) error {
	record, err := s.ledger.GetBillingRecord(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("load billing record: %w", err)
	}
	if record.IsFinal() {
		return nil
	}
	record.UpdatedAt = now
	if succeeded {
		record.Status = domain.BillingStatusCompleted
		record.PaidAt = &now
		record.PeriodStart = now
		record.PeriodEnd = now.Add(domain.BillingPeriod)
	} else {
		record.Status = domain.BillingStatusFailed
	}
	if err := s.ledger.UpdateBillingRecord(ctx, tx, record); err != nil {
		return fmt.Errorf("update billing record: %w", err)
	}
	return nil
}

func describe(r ports.VerifyResult) string {
	switch {
	case r.Message != "" && r.Err != nil:
		return r.Message + ": " + r.Err.Error()
	case r.Message != "":
		return r.Message
	case r.Err != nil:
		return r.Err.Error()
	}
	return "no verification result"
}

// Cancel moves the admin's subscription to cancelled
func (s *Service) Cancel(ctx context.Context, adminID string) (*domain.Subscription, error) {
	return s.applyByAdmin(ctx, "cancel", adminID, (*domain.Subscription).Cancel)
}

// Suspend blocks access until the admin pays again or an operator intervenes
func (s *Service) Suspend(ctx context.Context, adminID string) (*domain.Subscription, error) {
	return s.applyByAdmin(ctx, "suspend", adminID, (*domain.Subscription).Suspend)
}

func (s *Service) applyByAdmin(
	ctx context.Context,
	op, adminID string,
	apply func(*domain.Subscription, time.Time) (domain.TransitionEvent, bool),
) (*domain.Subscription, error) {
	var (
		sub    *domain.Subscription
		events []domain.TransitionEvent
	)
	err := s.withRetry(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		events = nil
		var err error
		sub, err = s.subs.LockByAdminID(ctx, tx, adminID)
		if err != nil {
			return err
		}
		event, changed := apply(sub, s.clock.Now())
		if !changed {
			return nil
		}
		events = append(events, event)
		return s.subs.Update(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	if len(events) > 0 {
		s.logger.Info("subscription status changed",
			ports.String("operation", op),
			ports.String("admin_id", adminID),
			ports.String("subscription_id", sub.ID.String()))
	}
	return sub, nil
}

// MarkPaymentDue moves an overdue trial or paid period to pending_payment
func (s *Service) MarkPaymentDue(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	return s.applyByID(ctx, "mark_payment_due", subscriptionID, func(ctx context.Context, tx pgx.Tx, sub *domain.Subscription, now time.Time) (domain.TransitionEvent, bool, error) {
		event, ok := sub.MarkPaymentDue(now)
		return event, ok, nil
	})
}

// ExpireIfStale expires a pending_payment subscription that has waited at least window
// and has no unresolved attempt younger than window.
func (s *Service) ExpireIfStale(ctx context.Context, subscriptionID uuid.UUID, window time.Duration) (bool, error) {
	if window <= 0 {
		window = domain.PaymentGraceWindow
	}
	return s.applyByID(ctx, "expire", subscriptionID, func(ctx context.Context, tx pgx.Tx, sub *domain.Subscription, now time.Time) (domain.TransitionEvent, bool, error) {
		if sub.Status != domain.SubscriptionStatusPendingPayment {
			return domain.TransitionEvent{}, false, nil
		}
		if now.Sub(sub.StatusChangedAt) < window {
			return domain.TransitionEvent{}, false, nil
		}
		inFlight, err := s.ledger.CountInFlightAttempts(ctx, tx, sub.ID, now.Add(-window))
		if err != nil {
			return domain.TransitionEvent{}, false, fmt.Errorf("count in-flight attempts: %w", err)
		}
		if inFlight > 0 {
			return domain.TransitionEvent{}, false, nil
		}
		return sub.Expire(now), true, nil
	})
}

func (s *Service) applyByID(
	ctx context.Context,
	op string,
	id uuid.UUID,
	apply func(context.Context, pgx.Tx, *domain.Subscription, time.Time) (domain.TransitionEvent, bool, error),
) (bool, error) {
	var events []domain.TransitionEvent
	err := s.withRetry(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		events = nil
		sub, err := s.subs.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		event, changed, err := apply(ctx, tx, sub, s.clock.Now())
		if err != nil || !changed {
			return err
		}
		events = append(events, event)
		return s.subs.Update(ctx, tx, sub)
	})
	if err != nil {
		return false, err
	}
	s.publish(ctx, events)
	return len(events) > 0, nil
}

// Status returns the admin's subscription read model. HasSubscription is false when
// the admin never enrolled.
func (s *Service) Status(ctx context.Context, adminID string) (*svcports.StatusView, error) {
	sub, err := s.subs.GetByAdminID(ctx, nil, adminID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return &svcports.StatusView{}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &svcports.StatusView{
		HasSubscription:      true,
		Status:               sub.Status,
		IsTrialActive:        sub.IsTrialActive(now),
		IsSubscriptionActive: sub.IsSubscriptionActive(now),
		HasAccess:            sub.HasAccess(now),
		DaysRemaining:        sub.DaysRemaining(now),
		TrialStart:           sub.TrialStart,
		TrialEnd:             sub.TrialEnd,
		SubscriptionStart:    sub.SubscriptionStart,
		SubscriptionEnd:      sub.SubscriptionEnd,
		MonthlyFee:           sub.MonthlyFee,
		Currency:             sub.Currency,
		NextPaymentAt:        sub.NextPaymentAt,
	}, nil
}

// Access answers the tenant-wide access check
func (s *Service) Access(ctx context.Context, adminID string) (*svcports.AccessView, error) {
	sub, err := s.subs.GetByAdminID(ctx, nil, adminID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return &svcports.AccessView{Message: "No subscription found"}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	view := &svcports.AccessView{
		HasAccess:     sub.HasAccess(now),
		Status:        sub.Status,
		DaysRemaining: sub.DaysRemaining(now),
	}
	switch {
	case view.HasAccess:
	case sub.Status == domain.SubscriptionStatusPendingPayment:
		view.Message = "Payment is being processed. Please wait for confirmation."
	case sub.Status == domain.SubscriptionStatusSuspended:
		view.Message = "Subscription is suspended. Please contact support."
	case sub.Status == domain.SubscriptionStatusCancelled:
		view.Message = "Subscription was cancelled."
	default:
		view.Message = "Subscription has expired"
	}
	return view, nil
}

// BillingHistory lists the admin's billing records, newest first
func (s *Service) BillingHistory(ctx context.Context, adminID string, limit int) ([]*domain.BillingRecord, error) {
	sub, err := s.subs.GetByAdminID(ctx, nil, adminID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return []*domain.BillingRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.ledger.ListBillingRecords(ctx, nil, sub.ID, clampLimit(limit))
}

// PaymentHistory lists the admin's payment attempts, newest first
func (s *Service) PaymentHistory(ctx context.Context, adminID string, limit int) ([]*domain.PaymentAttempt, error) {
	sub, err := s.subs.GetByAdminID(ctx, nil, adminID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return []*domain.PaymentAttempt{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.ledger.ListAttempts(ctx, nil, sub.ID, clampLimit(limit))
}

// LookupPayment returns one of the admin's attempts by its transaction reference
func (s *Service) LookupPayment(ctx context.Context, adminID, transactionRef string) (*domain.PaymentAttempt, error) {
	if strings.TrimSpace(transactionRef) == "" {
		return nil, domain.NewValidationError("transaction_id", "transaction reference is required")
	}
	attempt, sub, err := s.loadAttempt(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	if sub.AdminID != adminID {
		return nil, domain.ErrPaymentNotFound
	}
	return attempt, nil
}

// loadAttempt reads an attempt and its subscription from one snapshot
func (s *Service) loadAttempt(ctx context.Context, ref string) (*domain.PaymentAttempt, *domain.Subscription, error) {
	var (
		attempt *domain.PaymentAttempt
		sub     *domain.Subscription
	)
	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if attempt, err = s.ledger.GetAttemptByRef(ctx, tx, ref); err != nil {
			return err
		}
		if sub, err = s.subs.GetByID(ctx, tx, attempt.SubscriptionID); err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return attempt, sub, nil
}

// loadBillingRecord reads a billing record and its subscription from one snapshot
func (s *Service) loadBillingRecord(ctx context.Context, id uuid.UUID) (*domain.BillingRecord, *domain.Subscription, error) {
	var (
		record *domain.BillingRecord
		sub    *domain.Subscription
	)
	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if record, err = s.ledger.GetBillingRecord(ctx, tx, id); err != nil {
			return err
		}
		if sub, err = s.subs.GetByID(ctx, tx, record.SubscriptionID); err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return record, sub, nil
}

// CreateRefundRequest records a refund request against one of the admin's completed payments
func (s *Service) CreateRefundRequest(ctx context.Context, req svcports.RefundRequestInput) (*domain.RefundRequest, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "reason is required")
	}

	record, sub, err := s.loadBillingRecord(ctx, req.BillingRecordID)
	if err != nil {
		return nil, err
	}
	if sub.AdminID != req.AdminID {
		return nil, domain.ErrBillingRecordNotFound
	}
	if record.Status != domain.BillingStatusCompleted {
		return nil, domain.NewValidationError("billing_record_id", "only completed payments can be refunded")
	}

	existing, err := s.ledger.ListRefundRequests(ctx, nil, req.AdminID)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.BillingRecordID == record.ID && r.Status == domain.RefundStatusPending {
			return nil, domain.NewValidationError("billing_record_id", "a refund request for this payment is already pending")
		}
	}

	now := s.clock.Now()
	refund := &domain.RefundRequest{
		ID:              uuid.New(),
		BillingRecordID: record.ID,
		AdminID:         req.AdminID,
		Reason:          reason,
		Status:          domain.RefundStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.ledger.CreateRefundRequest(ctx, nil, refund); err != nil {
		return nil, fmt.Errorf("create refund request: %w", err)
	}

	s.logger.Info("refund requested",
		ports.String("admin_id", req.AdminID),
		ports.String("billing_record_id", record.ID.String()))
	return refund, nil
}

// ListRefundRequests lists the admin's refund requests, newest first
func (s *Service) ListRefundRequests(ctx context.Context, adminID string) ([]*domain.RefundRequest, error) {
	return s.ledger.ListRefundRequests(ctx, nil, adminID)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

var _ svcports.BillingService = (*Service)(nil)
