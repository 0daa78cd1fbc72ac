// Package vault stores each tenant's gateway credentials encrypted at rest and
// controls every path that reads them back.
package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	svcports "github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/observability"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

// TemplateVerificationCode is the notification template carrying the one-time code
const TemplateVerificationCode = "credentials.verification_code"

const (
	codeDigits       = 6
	tokenBytes       = 32
	defaultAuditSize = 50
)

// SecretCipher encrypts secrets at rest
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	NeedsRotation(ciphertext string) bool
	Reencrypt(ciphertext string) (string, error)
}

// Service implements svcports.CredentialService
type Service struct {
	db        ports.DBPort
	repo      ports.CredentialRepository
	cipher    SecretCipher
	passwords ports.PasswordVerifier
	notifier  ports.Notifier
	sandbox   domain.GatewayCredentials
	clock     timeutil.Clock
	logger    ports.Logger
}

// NewService creates a new credential vault service. sandbox is returned by
// ResolveGatewayCredentials when the tenant has no usable credentials.
func NewService(
	db ports.DBPort,
	repo ports.CredentialRepository,
	cipher SecretCipher,
	passwords ports.PasswordVerifier,
	notifier ports.Notifier,
	sandbox domain.GatewayCredentials,
	clock timeutil.Clock,
	logger ports.Logger,
) *Service {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	sandbox.Sandbox = true
	return &Service{
		db:        db,
		repo:      repo,
		cipher:    cipher,
		passwords: passwords,
		notifier:  notifier,
		sandbox:   sandbox,
		clock:     clock,
		logger:    logger,
	}
}

// Store validates, encrypts and saves the admin's credentials
func (s *Service) Store(ctx context.Context, actor domain.Actor, req svcports.StoreCredentialRequest) (*svcports.MaskedCredential, error) {
	env := req.Environment
	if env == "" {
		env = domain.EnvironmentTest
	}
	productCode := strings.TrimSpace(req.ProductCode)
	if err := domain.ValidateCredentialInput(productCode, req.SecretKey, env); err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(req.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}

	now := s.clock.Now()
	rec := &domain.CredentialRecord{
		ID:              uuid.New(),
		AdminID:         actor.ID,
		ProductCode:     productCode,
		EncryptedSecret: encrypted,
		Environment:     env,
		IsActive:        true,
		DisplayName:     strings.TrimSpace(req.DisplayName),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		created, err := s.repo.Upsert(ctx, tx, rec)
		if err != nil {
			return fmt.Errorf("upsert credentials: %w", err)
		}
		action := domain.AuditActionUpdated
		if created {
			action = domain.AuditActionCreated
		}
		entry := domain.NewAuditEntry(actor, &rec.ID, action, map[string]interface{}{
			"environment":  string(env),
			"product_code": domain.MaskValue(productCode),
		}, now)
		return s.repo.AppendAudit(ctx, tx, entry)
	})
	if err != nil {
		observability.RecordCredentialAccess("store", "error")
		return nil, err
	}

	observability.RecordCredentialAccess("store", "ok")
	s.logger.Info("gateway credentials stored",
		ports.String("admin_id", actor.ID),
		ports.String("environment", string(env)))

	return maskedView(rec), nil
}

// Get returns the masked credentials
func (s *Service) Get(ctx context.Context, actor domain.Actor) (*svcports.MaskedCredential, error) {
	rec, err := s.repo.GetByAdminID(ctx, nil, actor.ID)
	if err != nil {
		return nil, err
	}
	return maskedView(rec), nil
}

// Status reports whether credentials are configured, without revealing them
func (s *Service) Status(ctx context.Context, adminID string) (*svcports.CredentialStatus, error) {
	rec, err := s.repo.GetByAdminID(ctx, nil, adminID)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return &svcports.CredentialStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	updated := rec.UpdatedAt
	return &svcports.CredentialStatus{
		Configured:  true,
		IsActive:    rec.IsActive,
		Environment: rec.Environment,
		UpdatedAt:   &updated,
	}, nil
}

// RequestReveal checks the password, burns earlier codes and emails a new one
func (s *Service) RequestReveal(ctx context.Context, actor domain.Actor, password string) (*svcports.RevealChallenge, error) {
	if err := s.checkPassword(ctx, actor.ID, password); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetByAdminID(ctx, nil, actor.ID)
	if err != nil {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash verification code: %w", err)
	}

	now := s.clock.Now()
	vc := &domain.VerificationCode{
		ID:        uuid.New(),
		AdminID:   actor.ID,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(domain.VerificationCodeTTL),
		CreatedAt: now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.repo.InvalidateVerificationCodes(ctx, tx, actor.ID, now); err != nil {
			return fmt.Errorf("invalidate codes: %w", err)
		}
		if err := s.repo.CreateVerificationCode(ctx, tx, vc); err != nil {
			return fmt.Errorf("create code: %w", err)
		}
		return s.repo.AppendAudit(ctx, tx, domain.NewAuditEntry(actor, &rec.ID, domain.AuditActionViewed,
			map[string]interface{}{"stage": "reveal_requested"}, now))
	})
	if err != nil {
		return nil, err
	}

	err = s.notifier.Notify(ctx, domain.Notification{
		Recipient: actor.Email,
		Template:  TemplateVerificationCode,
		Data: map[string]interface{}{
			"code":            code,
			"expires_minutes": int(domain.VerificationCodeTTL.Minutes()),
		},
	})
	if err != nil {
		s.logger.Error("verification code delivery failed",
			ports.String("admin_id", actor.ID),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "verification code could not be sent", err)
	}

	observability.RecordCredentialAccess("reveal_request", "ok")
	return &svcports.RevealChallenge{SentTo: domain.MaskValue(actor.Email), ExpiresAt: vc.ExpiresAt}, nil
}

// VerifyCode checks the latest code. Wrong codes count against the attempt limit.
func (s *Service) VerifyCode(ctx context.Context, actor domain.Actor, code string) (*svcports.RevealGrant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError("code", "verification code is required")
	}

	now := s.clock.Now()
	var grant *svcports.RevealGrant
	accepted := false

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		vc, err := s.repo.LockLatestVerificationCode(ctx, tx, actor.ID)
		if errors.Is(err, domain.ErrVerificationNotPending) {
			return nil
		}
		if err != nil {
			return err
		}
		if !vc.IsUsable(now) {
			return nil
		}

		if bcrypt.CompareHashAndPassword([]byte(vc.CodeHash), []byte(code)) != nil {
			vc.Attempts++
			if vc.Attempts >= domain.MaxVerificationAttempts {
				vc.UsedAt = &now
			}
			return s.repo.UpdateVerificationCode(ctx, tx, vc)
		}

		vc.UsedAt = &now
		if err := s.repo.UpdateVerificationCode(ctx, tx, vc); err != nil {
			return err
		}

		token, err := generateToken()
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		at := &domain.AccessToken{
			ID:        uuid.New(),
			AdminID:   actor.ID,
			TokenHash: HashToken(token),
			ExpiresAt: now.Add(domain.AccessTokenTTL),
			CreatedAt: now,
		}
		if err := s.repo.CreateAccessToken(ctx, tx, at); err != nil {
			return fmt.Errorf("create token: %w", err)
		}
		grant = &svcports.RevealGrant{Token: token, ExpiresAt: at.ExpiresAt}
		accepted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !accepted {
		observability.RecordCredentialAccess("verify_code", "rejected")
		return nil, domain.ErrInvalidCode
	}
	observability.RecordCredentialAccess("verify_code", "ok")
	return grant, nil
}

var errUndecryptable = errors.New("stored secret is undecryptable")

// Reveal consumes the token and decrypts the secret in one transaction. When the
// secret cannot be decrypted the token stays unconsumed and Available is false.
func (s *Service) Reveal(ctx context.Context, actor domain.Actor, token string) (*svcports.RevealedCredential, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	now := s.clock.Now()
	var revealed *svcports.RevealedCredential
	var credentialID *uuid.UUID

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		at, err := s.repo.LockAccessToken(ctx, tx, actor.ID, HashToken(token))
		if err != nil {
			return err
		}
		if !at.IsUsable(now) {
			return domain.ErrTokenInvalid
		}
		at.ConsumedAt = &now
		if err := s.repo.UpdateAccessToken(ctx, tx, at); err != nil {
			return err
		}

		rec, err := s.repo.GetByAdminID(ctx, tx, actor.ID)
		if err != nil {
			return err
		}
		credentialID = &rec.ID

		secret, err := s.cipher.Decrypt(rec.EncryptedSecret)
		if err != nil {
			return errUndecryptable
		}

		revealed = &svcports.RevealedCredential{
			Available:   true,
			ProductCode: rec.ProductCode,
			SecretKey:   secret,
			Environment: rec.Environment,
		}
		return s.repo.AppendAudit(ctx, tx, domain.NewAuditEntry(actor, &rec.ID, domain.AuditActionViewed,
			map[string]interface{}{"stage": "revealed"}, now))
	})

	if errors.Is(err, errUndecryptable) {
		observability.RecordCredentialAccess("reveal", "decrypt_failed")
		s.logger.Error("stored gateway secret could not be decrypted",
			ports.String("admin_id", actor.ID))
		entry := domain.NewAuditEntry(actor, credentialID, domain.AuditActionViewed,
			map[string]interface{}{"stage": "reveal_failed", "reason": "decryption_failure"}, now)
		if auditErr := s.repo.AppendAudit(ctx, nil, entry); auditErr != nil {
			s.logger.Warn("failed to audit reveal failure", ports.Err(auditErr))
		}
		return &svcports.RevealedCredential{Available: false}, nil
	}
	if err != nil {
		observability.RecordCredentialAccess("reveal", "rejected")
		return nil, err
	}

	observability.RecordCredentialAccess("reveal", "ok")
	s.logger.Info("gateway credentials revealed", ports.String("admin_id", actor.ID))
	return revealed, nil
}

// Disable deactivates the credentials; payments fall back to sandbox
func (s *Service) Disable(ctx context.Context, actor domain.Actor, password string) error {
	return s.setActive(ctx, actor, password, false)
}

// Enable reactivates the credentials
func (s *Service) Enable(ctx context.Context, actor domain.Actor, password string) error {
	return s.setActive(ctx, actor, password, true)
}

func (s *Service) setActive(ctx context.Context, actor domain.Actor, password string, active bool) error {
	if err := s.checkPassword(ctx, actor.ID, password); err != nil {
		return err
	}

	action := domain.AuditActionDisabled
	if active {
		action = domain.AuditActionEnabled
	}
	now := s.clock.Now()

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rec, err := s.repo.GetByAdminID(ctx, tx, actor.ID)
		if err != nil {
			return err
		}
		rec.IsActive = active
		rec.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, rec); err != nil {
			return err
		}
		return s.repo.AppendAudit(ctx, tx, domain.NewAuditEntry(actor, &rec.ID, action, nil, now))
	})
	if err != nil {
		return err
	}

	observability.RecordCredentialAccess(string(action), "ok")
	s.logger.Info("gateway credentials toggled",
		ports.String("admin_id", actor.ID),
		ports.Bool("active", active))
	return nil
}

// AuditLog lists the newest audit entries first
func (s *Service) AuditLog(ctx context.Context, adminID string, limit int) ([]*domain.AuditLogEntry, error) {
	if limit <= 0 {
		limit = defaultAuditSize
	}
	return s.repo.ListAudit(ctx, nil, adminID, limit)
}

// ResolveGatewayCredentials implements ports.CredentialResolver
func (s *Service) ResolveGatewayCredentials(ctx context.Context, adminID string) (domain.GatewayCredentials, error) {
	rec, err := s.repo.GetByAdminID(ctx, nil, adminID)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		observability.RecordCredentialAccess("resolve", "sandbox")
		return s.sandbox, nil
	}
	if err != nil {
		return domain.GatewayCredentials{}, err
	}
	if !rec.IsActive {
		observability.RecordCredentialAccess("resolve", "sandbox")
		return s.sandbox, nil
	}

	secret, err := s.cipher.Decrypt(rec.EncryptedSecret)
	if err != nil {
		observability.RecordCredentialAccess("resolve", "decrypt_failed")
		s.logger.Warn("gateway secret undecryptable, falling back to sandbox credentials",
			ports.String("admin_id", adminID))
		return s.sandbox, nil
	}

	entry := domain.NewAuditEntry(domain.Actor{Admin: domain.Admin{ID: adminID}}, &rec.ID,
		domain.AuditActionAccessed, map[string]interface{}{"purpose": "gateway"}, s.clock.Now())
	if err := s.repo.AppendAudit(ctx, nil, entry); err != nil {
		s.logger.Warn("failed to audit credential access", ports.Err(err))
	}

	observability.RecordCredentialAccess("resolve", "tenant")
	return domain.GatewayCredentials{
		ProductCode: rec.ProductCode,
		SecretKey:   secret,
		Environment: rec.Environment,
	}, nil
}

// ReencryptAll rewrites secrets that are not under the primary key. Each record
// is updated in its own transaction so one bad record does not block the rest.
func (s *Service) ReencryptAll(ctx context.Context) (*svcports.ReencryptReport, error) {
	records, err := s.repo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	report := &svcports.ReencryptReport{Total: len(records)}
	for _, rec := range records {
		if !s.cipher.NeedsRotation(rec.EncryptedSecret) {
			if _, err := s.cipher.Decrypt(rec.EncryptedSecret); err != nil {
				s.logger.Error("credential is undecryptable under every configured key",
					ports.String("admin_id", rec.AdminID))
				report.Failed = append(report.Failed, rec.AdminID)
				continue
			}
			report.Unchanged++
			continue
		}
		rotated, err := s.cipher.Reencrypt(rec.EncryptedSecret)
		if err != nil {
			s.logger.Error("credential could not be re-encrypted",
				ports.String("admin_id", rec.AdminID), ports.Err(err))
			report.Failed = append(report.Failed, rec.AdminID)
			continue
		}
		rec.EncryptedSecret = rotated
		rec.UpdatedAt = s.clock.Now()
		err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.Update(ctx, tx, rec)
		})
		if err != nil {
			report.Failed = append(report.Failed, rec.AdminID)
			continue
		}
		report.Rotated++
	}

	s.logger.Info("credential re-encryption finished",
		ports.Int("total", report.Total),
		ports.Int("rotated", report.Rotated),
		ports.Int("failed", len(report.Failed)))
	return report, nil
}

func (s *Service) checkPassword(ctx context.Context, adminID, password string) error {
	if password == "" {
		return domain.NewValidationError("password", "password is required")
	}
	ok, err := s.passwords.VerifyPassword(ctx, adminID, password)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		observability.RecordCredentialAccess("password_check", "rejected")
		return domain.ErrInvalidPassword
	}
	return nil
}

func maskedView(rec *domain.CredentialRecord) *svcports.MaskedCredential {
	return &svcports.MaskedCredential{
		ProductCode: domain.MaskValue(rec.ProductCode),
		SecretKey:   domain.SecretMask,
		Environment: rec.Environment,
		IsActive:    rec.IsActive,
		DisplayName: rec.DisplayName,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// HashToken returns the stored form of a reveal token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var (
	_ svcports.CredentialService = (*Service)(nil)
	_ ports.CredentialResolver   = (*Service)(nil)
)
