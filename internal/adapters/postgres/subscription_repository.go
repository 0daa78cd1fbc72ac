package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

const subscriptionColumns = `id, admin_id, admin_email, status, trial_start, trial_end,
	subscription_start, subscription_end, monthly_fee, currency, last_payment_at,
	next_payment_at, status_changed_at, created_at, updated_at`

// SubscriptionRepository implements ports.SubscriptionRepository
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Create inserts a new subscription
func (r *SubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *domain.Subscription) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13, $14, $15)`,
		sub.ID, sub.AdminID, sub.AdminEmail, string(sub.Status), sub.TrialStart, sub.TrialEnd,
		sub.SubscriptionStart, sub.SubscriptionEnd, sub.MonthlyFee.String(), sub.Currency, sub.LastPaymentAt,
		sub.NextPaymentAt, sub.StatusChangedAt, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("create subscription: %w", err))
	}
	return nil
}

// GetByID retrieves a subscription by its ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.Subscription, error) {
	row := conn(r.pool, db).QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscriptionRow(row)
}

// GetByAdminID retrieves the admin's subscription
func (r *SubscriptionRepository) GetByAdminID(ctx context.Context, db ports.DBTX, adminID string) (*domain.Subscription, error) {
	row := conn(r.pool, db).QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE admin_id = $1`, adminID)
	return scanSubscriptionRow(row)
}

// LockByID reads the row with SELECT ... FOR UPDATE
func (r *SubscriptionRepository) LockByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Subscription, error) {
	row := conn(r.pool, tx).QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR UPDATE`, id)
	return scanSubscriptionRow(row)
}

// LockByAdminID reads the admin's row with SELECT ... FOR UPDATE
func (r *SubscriptionRepository) LockByAdminID(ctx context.Context, tx ports.DBTX, adminID string) (*domain.Subscription, error) {
	row := conn(r.pool, tx).QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE admin_id = $1 FOR UPDATE`, adminID)
	return scanSubscriptionRow(row)
}

// Update persists status, period and payment fields
func (r *SubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *domain.Subscription) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE subscriptions SET
			admin_email = $2, status = $3, trial_start = $4, trial_end = $5,
			subscription_start = $6, subscription_end = $7, monthly_fee = $8::numeric, currency = $9,
			last_payment_at = $10, next_payment_at = $11, status_changed_at = $12, updated_at = $13
		WHERE id = $1`,
		sub.ID, sub.AdminEmail, string(sub.Status), sub.TrialStart, sub.TrialEnd,
		sub.SubscriptionStart, sub.SubscriptionEnd, sub.MonthlyFee.String(), sub.Currency,
		sub.LastPaymentAt, sub.NextPaymentAt, sub.StatusChangedAt, sub.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("update subscription: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// ListOverdue lists trials and active subscriptions whose period ended at or before now
func (r *SubscriptionRepository) ListOverdue(ctx context.Context, db ports.DBTX, now time.Time, limit int) ([]*domain.Subscription, error) {
	rows, err := conn(r.pool, db).Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE (status = 'trial' AND (trial_end IS NULL OR trial_end <= $1))
		   OR (status = 'active' AND (subscription_end IS NULL OR subscription_end <= $1))
		ORDER BY updated_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, mapError(fmt.Errorf("list overdue subscriptions: %w", err))
	}
	return collectSubscriptions(rows)
}

// ListByStatus lists subscriptions in a status, oldest status change first
func (r *SubscriptionRepository) ListByStatus(ctx context.Context, db ports.DBTX, status domain.SubscriptionStatus, limit int) ([]*domain.Subscription, error) {
	rows, err := conn(r.pool, db).Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = $1
		ORDER BY status_changed_at
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, mapError(fmt.Errorf("list subscriptions by status: %w", err))
	}
	return collectSubscriptions(rows)
}

// ListEndingBetween lists running trials and paid periods ending in [from, to]
func (r *SubscriptionRepository) ListEndingBetween(ctx context.Context, db ports.DBTX, from, to time.Time) ([]*domain.Subscription, error) {
	rows, err := conn(r.pool, db).Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE (status = 'trial' AND trial_end BETWEEN $1 AND $2)
		   OR (status = 'active' AND subscription_end BETWEEN $1 AND $2)
		ORDER BY created_at`, from, to)
	if err != nil {
		return nil, mapError(fmt.Errorf("list subscriptions ending soon: %w", err))
	}
	return collectSubscriptions(rows)
}

func scanSubscriptionRow(row pgx.Row) (*domain.Subscription, error) {
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, notFound(err, domain.ErrSubscriptionNotFound)
	}
	return sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]*domain.Subscription, error) {
	defer rows.Close()
	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, mapError(err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return subs, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		sub    domain.Subscription
		status string
		fee    pgtype.Numeric
	)
	err := row.Scan(
		&sub.ID, &sub.AdminID, &sub.AdminEmail, &status, &sub.TrialStart, &sub.TrialEnd,
		&sub.SubscriptionStart, &sub.SubscriptionEnd, &fee, &sub.Currency, &sub.LastPaymentAt,
		&sub.NextPaymentAt, &sub.StatusChangedAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = domain.SubscriptionStatus(status)
	if sub.MonthlyFee, err = pgNumericToDecimal(fee); err != nil {
		return nil, err
	}
	return &sub, nil
}

var _ ports.SubscriptionRepository = (*SubscriptionRepository)(nil)
