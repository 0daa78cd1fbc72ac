package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// SubscriptionRepository defines the interface for subscription persistence.
// A nil DBTX means the repository's own pool.
type SubscriptionRepository interface {
	// Create inserts a new subscription. An admin may own only one.
	Create(ctx context.Context, tx DBTX, sub *domain.Subscription) error

	// GetByID retrieves a subscription by its ID
	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Subscription, error)

	// GetByAdminID retrieves the admin's subscription
	GetByAdminID(ctx context.Context, db DBTX, adminID string) (*domain.Subscription, error)

	// LockByID reads the row with SELECT ... FOR UPDATE
	LockByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Subscription, error)

	// LockByAdminID reads the admin's row with SELECT ... FOR UPDATE
	LockByAdminID(ctx context.Context, tx DBTX, adminID string) (*domain.Subscription, error)

	// Update persists status, period and payment fields
	Update(ctx context.Context, tx DBTX, sub *domain.Subscription) error

	// ListOverdue lists trials and active subscriptions whose period ended at or before now
	ListOverdue(ctx context.Context, db DBTX, now time.Time, limit int) ([]*domain.Subscription, error)

	// ListByStatus lists subscriptions in a status, oldest status change first
	ListByStatus(ctx context.Context, db DBTX, status domain.SubscriptionStatus, limit int) ([]*domain.Subscription, error)

	// ListEndingBetween lists running trials and paid periods ending in [from, to]
	ListEndingBetween(ctx context.Context, db DBTX, from, to time.Time) ([]*domain.Subscription, error)
}

// LedgerRepository stores billing records, payment attempts and refund requests.
type LedgerRepository interface {
	CreateBillingRecord(ctx context.Context, tx DBTX, rec *domain.BillingRecord) error
	GetBillingRecord(ctx context.Context, db DBTX, id uuid.UUID) (*domain.BillingRecord, error)
	UpdateBillingRecord(ctx context.Context, tx DBTX, rec *domain.BillingRecord) error
	ListBillingRecords(ctx context.Context, db DBTX, subscriptionID uuid.UUID, limit int) ([]*domain.BillingRecord, error)

	// CreateAttempt fails with domain.ErrDuplicateTransaction when the reference already exists
	CreateAttempt(ctx context.Context, tx DBTX, attempt *domain.PaymentAttempt) error
	GetAttemptByRef(ctx context.Context, db DBTX, ref string) (*domain.PaymentAttempt, error)
	// LockAttemptByRef reads the attempt with SELECT ... FOR UPDATE
	LockAttemptByRef(ctx context.Context, tx DBTX, ref string) (*domain.PaymentAttempt, error)
	UpdateAttempt(ctx context.Context, tx DBTX, attempt *domain.PaymentAttempt) error
	ListAttempts(ctx context.Context, db DBTX, subscriptionID uuid.UUID, limit int) ([]*domain.PaymentAttempt, error)

	// CountInFlightAttempts counts unresolved attempts created at or after since
	CountInFlightAttempts(ctx context.Context, db DBTX, subscriptionID uuid.UUID, since time.Time) (int, error)

	// CountStaleAttempts counts attempts DeleteStaleAttempts would remove
	CountStaleAttempts(ctx context.Context, db DBTX, cutoff time.Time) (int64, error)
	// DeleteStaleAttempts removes failed and unresolved attempts created before cutoff
	DeleteStaleAttempts(ctx context.Context, tx DBTX, cutoff time.Time) (int64, error)
	// FailOrphanedBillingRecords marks pending records created before cutoff with no attempts left as failed
	FailOrphanedBillingRecords(ctx context.Context, tx DBTX, cutoff time.Time, now time.Time) (int64, error)

	CreateRefundRequest(ctx context.Context, tx DBTX, req *domain.RefundRequest) error
	ListRefundRequests(ctx context.Context, db DBTX, adminID string) ([]*domain.RefundRequest, error)
}

// CredentialRepository stores gateway credentials, their audit trail and the reveal factors.
type CredentialRepository interface {
	GetByAdminID(ctx context.Context, db DBTX, adminID string) (*domain.CredentialRecord, error)
	// Upsert inserts or replaces the admin's credential; created reports an insert
	Upsert(ctx context.Context, tx DBTX, rec *domain.CredentialRecord) (created bool, err error)
	Update(ctx context.Context, tx DBTX, rec *domain.CredentialRecord) error
	ListAll(ctx context.Context, db DBTX) ([]*domain.CredentialRecord, error)

	AppendAudit(ctx context.Context, db DBTX, entry *domain.AuditLogEntry) error
	ListAudit(ctx context.Context, db DBTX, adminID string, limit int) ([]*domain.AuditLogEntry, error)

	// InvalidateVerificationCodes burns every unused code of the admin
	InvalidateVerificationCodes(ctx context.Context, tx DBTX, adminID string, now time.Time) error
	CreateVerificationCode(ctx context.Context, tx DBTX, code *domain.VerificationCode) error
	// LockLatestVerificationCode reads the newest unused code with SELECT ... FOR UPDATE
	LockLatestVerificationCode(ctx context.Context, tx DBTX, adminID string) (*domain.VerificationCode, error)
	UpdateVerificationCode(ctx context.Context, tx DBTX, code *domain.VerificationCode) error

	CreateAccessToken(ctx context.Context, tx DBTX, token *domain.AccessToken) error
	// LockAccessToken reads the token by hash with SELECT ... FOR UPDATE
	LockAccessToken(ctx context.Context, tx DBTX, adminID, tokenHash string) (*domain.AccessToken, error)
	UpdateAccessToken(ctx context.Context, tx DBTX, token *domain.AccessToken) error
}
