package memstore

import (
	"context"
	"time"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// CredentialRepo implements ports.CredentialRepository
type CredentialRepo struct{ s *Store }

func (r *CredentialRepo) GetByAdminID(_ context.Context, _ ports.DBTX, adminID string) (*domain.CredentialRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.d.creds[adminID]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return &rec, nil
}

func (r *CredentialRepo) Upsert(_ context.Context, _ ports.DBTX, rec *domain.CredentialRecord) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Credentials.Upsert"); err != nil {
		return false, err
	}
	existing, ok := r.s.d.creds[rec.AdminID]
	if ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	r.s.d.creds[rec.AdminID] = *rec
	return !ok, nil
}

func (r *CredentialRepo) Update(_ context.Context, _ ports.DBTX, rec *domain.CredentialRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Credentials.Update"); err != nil {
		return err
	}
	if _, ok := r.s.d.creds[rec.AdminID]; !ok {
		return domain.ErrCredentialNotFound
	}
	r.s.d.creds[rec.AdminID] = *rec
	return nil
}

func (r *CredentialRepo) ListAll(_ context.Context, _ ports.DBTX) ([]*domain.CredentialRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.CredentialRecord, 0, len(r.s.d.creds))
	for _, rec := range r.s.d.creds {
		rec := rec
		out = append(out, &rec)
	}
	return out, nil
}

func (r *CredentialRepo) AppendAudit(_ context.Context, _ ports.DBTX, e *domain.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Credentials.AppendAudit"); err != nil {
		return err
	}
	r.s.d.audit = append(r.s.d.audit, *e)
	return nil
}

func (r *CredentialRepo) ListAudit(_ context.Context, _ ports.DBTX, adminID string, limit int) ([]*domain.AuditLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.AuditLogEntry
	for i := len(r.s.d.audit) - 1; i >= 0; i-- {
		e := r.s.d.audit[i]
		if e.AdminID == adminID {
			out = append(out, &e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *CredentialRepo) InvalidateVerificationCodes(_ context.Context, _ ports.DBTX, adminID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.d.codes {
		if c.AdminID == adminID && c.UsedAt == nil {
			used := now
			c.UsedAt = &used
			r.s.d.codes[id] = c
		}
	}
	return nil
}

func (r *CredentialRepo) CreateVerificationCode(_ context.Context, _ ports.DBTX, c *domain.VerificationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.codes[c.ID] = *c
	return nil
}

func (r *CredentialRepo) LockLatestVerificationCode(_ context.Context, _ ports.DBTX, adminID string) (*domain.VerificationCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.VerificationCode
	for _, c := range r.s.d.codes {
		c := c
		if c.AdminID != adminID || c.UsedAt != nil {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = &c
		}
	}
	if latest == nil {
		return nil, domain.ErrVerificationNotPending
	}
	return latest, nil
}

func (r *CredentialRepo) UpdateVerificationCode(_ context.Context, _ ports.DBTX, c *domain.VerificationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.codes[c.ID] = *c
	return nil
}

func (r *CredentialRepo) CreateAccessToken(_ context.Context, _ ports.DBTX, t *domain.AccessToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.tokens[t.ID] = *t
	return nil
}

func (r *CredentialRepo) LockAccessToken(_ context.Context, _ ports.DBTX, adminID, tokenHash string) (*domain.AccessToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.d.tokens {
		if t.AdminID == adminID && t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, domain.ErrTokenInvalid
}

func (r *CredentialRepo) UpdateAccessToken(_ context.Context, _ ports.DBTX, t *domain.AccessToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.tokens[t.ID] = *t
	return nil
}

var _ ports.CredentialRepository = (*CredentialRepo)(nil)
