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

const billingRecordColumns = `id, subscription_id, amount, currency, payment_method, status,
	billing_period_start, billing_period_end, paid_at, created_at, updated_at`

const attemptColumns = `id, subscription_id, billing_record_id, payment_type, transaction_ref, amount,
	currency, product_code, sandbox, is_successful, gateway_ref_id, response_snapshot, error_message,
	processed_at, created_at`

const refundColumns = `id, billing_record_id, admin_id, reason, status, admin_notes, created_at, updated_at`

// staleAttemptFilter selects failed or never-resolved attempts created before $1
const staleAttemptFilter = `created_at < $1 AND (processed_at IS NULL OR is_successful = FALSE)`

// LedgerRepository implements ports.LedgerRepository
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// CreateBillingRecord inserts a billing record
func (r *LedgerRepository) CreateBillingRecord(ctx context.Context, tx ports.DBTX, rec *domain.BillingRecord) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO billing_records (`+billingRecordColumns+`)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.SubscriptionID, rec.Amount.String(), rec.Currency, string(rec.Method), string(rec.Status),
		rec.PeriodStart, rec.PeriodEnd, rec.PaidAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("create billing record: %w", err))
	}
	return nil
}

// GetBillingRecord retrieves a billing record by ID
func (r *LedgerRepository) GetBillingRecord(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.BillingRecord, error) {
	row := conn(r.pool, db).QueryRow(ctx, `SELECT `+billingRecordColumns+` FROM billing_records WHERE id = $1`, id)
	rec, err := scanBillingRecord(row)
	if err != nil {
		return nil, notFound(err, domain.ErrBillingRecordNotFound)
	}
	return rec, nil
}

// UpdateBillingRecord persists status and payment time
func (r *LedgerRepository) UpdateBillingRecord(ctx context.Context, tx ports.DBTX, rec *domain.BillingRecord) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE billing_records SET
			status = $2, billing_period_start = $3, billing_period_end = $4, paid_at = $5, updated_at = $6
		WHERE id = $1`,
		rec.ID, string(rec.Status), rec.PeriodStart, rec.PeriodEnd, rec.PaidAt, rec.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("update billing record: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBillingRecordNotFound
	}
	return nil
}

// ListBillingRecords lists a subscription's billing records, newest first
func (r *LedgerRepository) ListBillingRecords(ctx context.Context, db ports.DBTX, subscriptionID uuid.UUID, limit int) ([]*domain.BillingRecord, error) {
	rows, err := conn(r.pool, db).Query(ctx, `
		SELECT `+billingRecordColumns+` FROM billing_records
		WHERE subscription_id = $1 ORDER BY created_at DESC LIMIT $2`, subscriptionID, limit)
	if err != nil {
		return nil, mapError(fmt.Errorf("list billing records: %w", err))
	}
	defer rows.Close()

	var records []*domain.BillingRecord
	for rows.Next() {
		rec, err := scanBillingRecord(rows)
		if err != nil {
			return nil, mapError(err)
		}
		records = append(records, rec)
	}
	return records, mapError(rows.Err())
}

// CreateAttempt inserts a payment attempt. A reused reference is a duplicate transaction.
func (r *LedgerRepository) CreateAttempt(ctx context.Context, tx ports.DBTX, a *domain.PaymentAttempt) error {
	snapshot, err := marshalJSONB(a.ResponseSnapshot)
	if err != nil {
		return err
	}
	_, err = conn(r.pool, tx).Exec(ctx, `
		INSERT INTO payment_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.SubscriptionID, a.BillingRecordID, string(a.PaymentType), a.TransactionRef, a.Amount.String(),
		a.Currency, a.ProductCode, a.Sandbox, a.IsSuccessful, a.GatewayRefID, snapshot, a.ErrorMessage,
		a.ProcessedAt, a.CreatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("create payment attempt: %w", err))
	}
	return nil
}

// GetAttemptByRef retrieves an attempt by its transaction reference
func (r *LedgerRepository) GetAttemptByRef(ctx context.Context, db ports.DBTX, ref string) (*domain.PaymentAttempt, error) {
	row := conn(r.pool, db).QueryRow(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE transaction_ref = $1`, ref)
	return scanAttemptRow(row)
}

// LockAttemptByRef reads the attempt with SELECT ... FOR UPDATE
func (r *LedgerRepository) LockAttemptByRef(ctx context.Context, tx ports.DBTX, ref string) (*domain.PaymentAttempt, error) {
	row := conn(r.pool, tx).QueryRow(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE transaction_ref = $1 FOR UPDATE`, ref)
	return scanAttemptRow(row)
}

// UpdateAttempt records the outcome of an attempt
func (r *LedgerRepository) UpdateAttempt(ctx context.Context, tx ports.DBTX, a *domain.PaymentAttempt) error {
	snapshot, err := marshalJSONB(a.ResponseSnapshot)
	if err != nil {
		return err
	}
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE payment_attempts SET
			billing_record_id = $2, is_successful = $3, gateway_ref_id = $4, response_snapshot = $5,
			error_message = $6, processed_at = $7
		WHERE id = $1`,
		a.ID, a.BillingRecordID, a.IsSuccessful, a.GatewayRefID, snapshot, a.ErrorMessage, a.ProcessedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("update payment attempt: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// ListAttempts lists a subscription's attempts, newest first
func (r *LedgerRepository) ListAttempts(ctx context.Context, db ports.DBTX, subscriptionID uuid.UUID, limit int) ([]*domain.PaymentAttempt, error) {
	rows, err := conn(r.pool, db).Query(ctx, `
		SELECT `+attemptColumns+` FROM payment_attempts
		WHERE subscription_id = $1 ORDER BY created_at DESC LIMIT $2`, subscriptionID, limit)
	if err != nil {
		return nil, mapError(fmt.Errorf("list payment attempts: %w", err))
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, mapError(err)
		}
		attempts = append(attempts, a)
	}
	return attempts, mapError(rows.Err())
}

// CountInFlightAttempts counts unresolved attempts created at or after since
func (r *LedgerRepository) CountInFlightAttempts(ctx context.Context, db ports.DBTX, subscriptionID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := conn(r.pool, db).QueryRow(ctx, `
		SELECT COUNT(*) FROM payment_attempts
		WHERE subscription_id = $1 AND processed_at IS NULL AND created_at >= $2`,
		subscriptionID, since).Scan(&n)
	if err != nil {
		return 0, mapError(fmt.Errorf("count in-flight attempts: %w", err))
	}
	return n, nil
}

// CountStaleAttempts counts attempts DeleteStaleAttempts would remove
func (r *LedgerRepository) CountStaleAttempts(ctx context.Context, db ports.DBTX, cutoff time.Time) (int64, error) {
	var n int64
	if err := conn(r.pool, db).QueryRow(ctx, `SELECT COUNT(*) FROM payment_attempts WHERE `+staleAttemptFilter, cutoff).Scan(&n); err != nil {
		return 0, mapError(fmt.Errorf("count stale attempts: %w", err))
	}
	return n, nil
}

// DeleteStaleAttempts removes failed and unresolved attempts created before cutoff
func (r *LedgerRepository) DeleteStaleAttempts(ctx context.Context, tx ports.DBTX, cutoff time.Time) (int64, error) {
	tag, err := conn(r.pool, tx).Exec(ctx, `DELETE FROM payment_attempts WHERE `+staleAttemptFilter, cutoff)
	if err != nil {
		return 0, mapError(fmt.Errorf("delete stale attempts: %w", err))
	}
	return tag.RowsAffected(), nil
}

// FailOrphanedBillingRecords marks pending records created before cutoff with no attempts left as failed
func (r *LedgerRepository) FailOrphanedBillingRecords(ctx context.Context, tx ports.DBTX, cutoff, now time.Time) (int64, error) {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE billing_records b SET status = 'failed', updated_at = $2
		WHERE b.status = 'pending' AND b.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM payment_attempts a WHERE a.billing_record_id = b.id)`,
		cutoff, now)
	if err != nil {
		return 0, mapError(fmt.Errorf("fail orphaned billing records: %w", err))
	}
	return tag.RowsAffected(), nil
}

// CreateRefundRequest inserts a refund request
func (r *LedgerRepository) CreateRefundRequest(ctx context.Context, tx ports.DBTX, req *domain.RefundRequest) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO refund_requests (`+refundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.BillingRecordID, req.AdminID, req.Reason, string(req.Status), req.AdminNotes,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("create refund request: %w", err))
	}
	return nil
}

// ListRefundRequests lists an admin's refund requests, newest first
func (r *LedgerRepository) ListRefundRequests(ctx context.Context, db ports.DBTX, adminID string) ([]*domain.RefundRequest, error) {
	rows, err := conn(r.pool, db).Query(ctx, `
		SELECT `+refundColumns+` FROM refund_requests WHERE admin_id = $1 ORDER BY created_at DESC`, adminID)
	if err != nil {
		return nil, mapError(fmt.Errorf("list refund requests: %w", err))
	}
	defer rows.Close()

	var requests []*domain.RefundRequest
	for rows.Next() {
		var (
			req    domain.RefundRequest
			status string
		)
		if err := rows.Scan(&req.ID, &req.BillingRecordID, &req.AdminID, &req.Reason, &status,
			&req.AdminNotes, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		req.Status = domain.RefundStatus(status)
		requests = append(requests, &req)
	}
	return requests, mapError(rows.Err())
}

func scanBillingRecord(row pgx.Row) (*domain.BillingRecord, error) {
	var (
		rec            domain.BillingRecord
		amount         pgtype.Numeric
		method, status string
	)
	err := row.Scan(&rec.ID, &rec.SubscriptionID, &amount, &rec.Currency, &method, &status,
		&rec.PeriodStart, &rec.PeriodEnd, &rec.PaidAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Method = domain.PaymentMethod(method)
	rec.Status = domain.BillingStatus(status)
	if rec.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanAttemptRow(row pgx.Row) (*domain.PaymentAttempt, error) {
	a, err := scanAttempt(row)
	if err != nil {
		return nil, notFound(err, domain.ErrPaymentNotFound)
	}
	return a, nil
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var (
		a           domain.PaymentAttempt
		paymentType string
		amount      pgtype.Numeric
		snapshot    []byte
	)
	err := row.Scan(&a.ID, &a.SubscriptionID, &a.BillingRecordID, &paymentType, &a.TransactionRef, &amount,
		&a.Currency, &a.ProductCode, &a.Sandbox, &a.IsSuccessful, &a.GatewayRefID, &snapshot, &a.ErrorMessage,
		&a.ProcessedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.PaymentType = domain.PaymentType(paymentType)
	if a.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	if a.ResponseSnapshot, err = unmarshalJSONB(snapshot); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ ports.LedgerRepository = (*LedgerRepository)(nil)
