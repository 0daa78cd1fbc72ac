package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

const credentialColumns = `id, admin_id, product_code, encrypted_secret, environment, is_active,
	display_name, created_at, updated_at`

const auditColumns = `id, credential_id, admin_id, action, ip_address, user_agent, details, created_at`

// CredentialRepository implements ports.CredentialRepository
type CredentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// GetByAdminID retrieves the admin's credential record
func (r *CredentialRepository) GetByAdminID(ctx context.Context, db ports.DBTX, adminID string) (*domain.CredentialRecord, error) {
	row := conn(r.pool, db).QueryRow(ctx, `SELECT `+credentialColumns+` FROM gateway_credentials WHERE admin_id = $1`, adminID)
	rec, err := scanCredential(row)
	if err != nil {
		return nil, notFound(err, domain.ErrCredentialNotFound)
	}
	return rec, nil
}

// Upsert inserts or replaces the admin's credential
func (r *CredentialRepository) Upsert(ctx context.Context, tx ports.DBTX, rec *domain.CredentialRecord) (bool, error) {
	var created bool
	err := conn(r.pool, tx).QueryRow(ctx, `
		INSERT INTO gateway_credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (admin_id) DO UPDATE SET
			product_code = EXCLUDED.product_code,
			encrypted_secret = EXCLUDED.encrypted_secret,
			environment = EXCLUDED.environment,
			is_active = EXCLUDED.is_active,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0)`,
		rec.ID, rec.AdminID, rec.ProductCode, rec.EncryptedSecret, string(rec.Environment), rec.IsActive,
		rec.DisplayName, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID, &rec.CreatedAt, &created)
	if err != nil {
		return false, mapError(fmt.Errorf("upsert credential: %w", err))
	}
	return created, nil
}

// Update persists the record, including the active flag and re-encrypted secret
func (r *CredentialRepository) Update(ctx context.Context, tx ports.DBTX, rec *domain.CredentialRecord) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE gateway_credentials SET
			product_code = $2, encrypted_secret = $3, environment = $4, is_active = $5,
			display_name = $6, updated_at = $7
		WHERE id = $1`,
		rec.ID, rec.ProductCode, rec.EncryptedSecret, string(rec.Environment), rec.IsActive,
		rec.DisplayName, rec.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("update credential: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

// ListAll lists every credential record
func (r *CredentialRepository) ListAll(ctx context.Context, db ports.DBTX) ([]*domain.CredentialRecord, error) {
	rows, err := conn(r.pool, db).Query(ctx, `SELECT `+credentialColumns+` FROM gateway_credentials ORDER BY created_at`)
	if err != nil {
		return nil, mapError(fmt.Errorf("list credentials: %w", err))
	}
	defer rows.Close()

	var records []*domain.CredentialRecord
	for rows.Next() {
		rec, err := scanCredential(rows)
		if err != nil {
			return nil, mapError(err)
		}
		records = append(records, rec)
	}
	return records, mapError(rows.Err())
}

// AppendAudit writes an audit entry
func (r *CredentialRepository) AppendAudit(ctx context.Context, db ports.DBTX, e *domain.AuditLogEntry) error {
	details, err := marshalJSONB(e.Details)
	if err != nil {
		return err
	}
	_, err = conn(r.pool, db).Exec(ctx, `
		INSERT INTO credential_audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.CredentialID, e.AdminID, string(e.Action), e.IPAddress, e.UserAgent, details, e.CreatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("append audit entry: %w", err))
	}
	return nil
}

// ListAudit lists the admin's audit trail, newest first
func (r *CredentialRepository) ListAudit(ctx context.Context, db ports.DBTX, adminID string, limit int) ([]*domain.AuditLogEntry, error) {
	rows, err := conn(r.pool, db).Query(ctx, `
		SELECT `+auditColumns+` FROM credential_audit_logs
		WHERE admin_id = $1 ORDER BY created_at DESC LIMIT $2`, adminID, limit)
	if err != nil {
		return nil, mapError(fmt.Errorf("list audit entries: %w", err))
	}
	defer rows.Close()

	var entries []*domain.AuditLogEntry
	for rows.Next() {
		var (
			e       domain.AuditLogEntry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.CredentialID, &e.AdminID, &action, &e.IPAddress, &e.UserAgent,
			&details, &e.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		e.Action = domain.AuditAction(action)
		if e.Details, err = unmarshalJSONB(details); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, mapError(rows.Err())
}

// InvalidateVerificationCodes burns every unused code of the admin
func (r *CredentialRepository) InvalidateVerificationCodes(ctx context.Context, tx ports.DBTX, adminID string, now time.Time) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE credential_verification_codes SET used_at = $2
		WHERE admin_id = $1 AND used_at IS NULL`, adminID, now)
	if err != nil {
		return mapError(fmt.Errorf("invalidate verification codes: %w", err))
	}
	return nil
}

// CreateVerificationCode stores a hashed one-time code
func (r *CredentialRepository) CreateVerificationCode(ctx context.Context, tx ports.DBTX, c *domain.VerificationCode) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO credential_verification_codes (id, admin_id, code_hash, attempts, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.AdminID, c.CodeHash, c.Attempts, c.ExpiresAt, c.UsedAt, c.CreatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("create verification code: %w", err))
	}
	return nil
}

// LockLatestVerificationCode reads the newest unused code with SELECT ... FOR UPDATE
func (r *CredentialRepository) LockLatestVerificationCode(ctx context.Context, tx ports.DBTX, adminID string) (*domain.VerificationCode, error) {
	var c domain.VerificationCode
	err := conn(r.pool, tx).QueryRow(ctx, `
		SELECT id, admin_id, code_hash, attempts, expires_at, used_at, created_at
		FROM credential_verification_codes
		WHERE admin_id = $1 AND used_at IS NULL
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE`, adminID,
	).Scan(&c.ID, &c.AdminID, &c.CodeHash, &c.Attempts, &c.ExpiresAt, &c.UsedAt, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrVerificationNotPending)
	}
	return &c, nil
}

// UpdateVerificationCode persists the attempt counter and used flag
func (r *CredentialRepository) UpdateVerificationCode(ctx context.Context, tx ports.DBTX, c *domain.VerificationCode) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE credential_verification_codes SET attempts = $2, used_at = $3 WHERE id = $1`,
		c.ID, c.Attempts, c.UsedAt)
	if err != nil {
		return mapError(fmt.Errorf("update verification code: %w", err))
	}
	return nil
}

// CreateAccessToken stores a hashed reveal token
func (r *CredentialRepository) CreateAccessToken(ctx context.Context, tx ports.DBTX, t *domain.AccessToken) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO credential_access_tokens (id, admin_id, token_hash, expires_at, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.AdminID, t.TokenHash, t.ExpiresAt, t.ConsumedAt, t.CreatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("create access token: %w", err))
	}
	return nil
}

// LockAccessToken reads the token by hash with SELECT ... FOR UPDATE
func (r *CredentialRepository) LockAccessToken(ctx context.Context, tx ports.DBTX, adminID, tokenHash string) (*domain.AccessToken, error) {
	var t domain.AccessToken
	err := conn(r.pool, tx).QueryRow(ctx, `
		SELECT id, admin_id, token_hash, expires_at, consumed_at, created_at
		FROM credential_access_tokens
		WHERE admin_id = $1 AND token_hash = $2
		FOR UPDATE`, adminID, tokenHash,
	).Scan(&t.ID, &t.AdminID, &t.TokenHash, &t.ExpiresAt, &t.ConsumedAt, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrTokenInvalid)
	}
	return &t, nil
}

// UpdateAccessToken persists the consumed flag
func (r *CredentialRepository) UpdateAccessToken(ctx context.Context, tx ports.DBTX, t *domain.AccessToken) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE credential_access_tokens SET consumed_at = $2 WHERE id = $1`, t.ID, t.ConsumedAt)
	if err != nil {
		return mapError(fmt.Errorf("update access token: %w", err))
	}
	return nil
}

func scanCredential(row pgx.Row) (*domain.CredentialRecord, error) {
	var (
		rec domain.CredentialRecord
		env string
	)
	if err := row.Scan(&rec.ID, &rec.AdminID, &rec.ProductCode, &rec.EncryptedSecret, &env, &rec.IsActive,
		&rec.DisplayName, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Environment = domain.Environment(env)
	return &rec, nil
}

var _ ports.CredentialRepository = (*CredentialRepository)(nil)
