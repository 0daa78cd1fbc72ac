package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	pkgerrors "github.com/prajwal851851/QRCODE-PROJECT/pkg/errors"
)

// Environment selects the gateway's test or production endpoints
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// ParseEnvironment accepts "test" or "production"; empty defaults to test.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case "", EnvironmentTest:
		return EnvironmentTest, nil
	case EnvironmentProduction:
		return EnvironmentProduction, nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

const (
	// ProductionProductCodePrefix is the gateway's convention for live merchant codes.
	ProductionProductCodePrefix = "EPAY"
	MinProductCodeLength        = 3
	MinSecretKeyLength          = 8
	MaxSecretKeyLength          = 255

	// VerificationCodeTTL bounds how long an emailed one-time code is valid.
	VerificationCodeTTL = 5 * time.Minute
	// AccessTokenTTL bounds how long a reveal token is valid.
	AccessTokenTTL = 5 * time.Minute
	// MaxVerificationAttempts is the number of wrong codes tolerated before the code is burned.
	MaxVerificationAttempts = 5
)

// CredentialRecord holds one admin's gateway merchant code and encrypted secret.
type CredentialRecord struct {
	ID              uuid.UUID   `json:"id"`
	AdminID         string      `json:"admin_id"`
	ProductCode     string      `json:"-"`
	EncryptedSecret string      `json:"-"`
	Environment     Environment `json:"environment"`
	IsActive        bool        `json:"is_active"`
	DisplayName     string      `json:"display_name,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ValidateCredentialInput checks a product code and secret before anything is encrypted.
func ValidateCredentialInput(productCode, secretKey string, env Environment) error {
	var errs pkgerrors.ValidationErrors

	code := strings.TrimSpace(productCode)
	switch {
	case code == "":
		errs.Add("product_code", "product code is required")
	case len(code) < MinProductCodeLength:
		errs.Add("product_code", fmt.Sprintf("product code must be at least %d characters", MinProductCodeLength))
	case !isAlphanumeric(code):
		errs.Add("product_code", "product code must contain only letters and numbers")
	case env == EnvironmentProduction && !strings.HasPrefix(strings.ToUpper(code), ProductionProductCodePrefix):
		errs.Add("product_code", fmt.Sprintf("production product code must start with %s", ProductionProductCodePrefix))
	}

	switch {
	case secretKey == "":
		errs.Add("secret_key", "secret key is required")
	case len(secretKey) < MinSecretKeyLength:
		errs.Add("secret_key", fmt.Sprintf("secret key must be at least %d characters", MinSecretKeyLength))
	case len(secretKey) > MaxSecretKeyLength:
		errs.Add("secret_key", fmt.Sprintf("secret key must be at most %d characters", MaxSecretKeyLength))
	}

	if errs.HasErrors() {
		return ValidationFailed(errs)
	}
	return nil
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

// MaskValue shows the first and last four characters of a value. Values of eight
// characters or fewer are fully masked.
func MaskValue(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// SecretMask is shown in place of a secret that is never decrypted for display.
const SecretMask = "••••••••"

// AuditAction is the kind of credential access being recorded
type AuditAction string

const (
	AuditActionCreated  AuditAction = "created"
	AuditActionUpdated  AuditAction = "updated"
	AuditActionViewed   AuditAction = "viewed"
	AuditActionDeleted  AuditAction = "deleted"
	AuditActionEnabled  AuditAction = "enabled"
	AuditActionDisabled AuditAction = "disabled"
	AuditActionAccessed AuditAction = "accessed"
)

// AuditLogEntry is an append-only record of a credential read or write.
type AuditLogEntry struct {
	ID           uuid.UUID              `json:"id"`
	CredentialID *uuid.UUID             `json:"credential_id,omitempty"`
	AdminID      string                 `json:"admin_id"`
	Action       AuditAction            `json:"action"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewAuditEntry builds an entry for actor acting on the credential.
func NewAuditEntry(actor Actor, credentialID *uuid.UUID, action AuditAction, details map[string]interface{}, now time.Time) *AuditLogEntry {
	return &AuditLogEntry{
		ID:           uuid.New(),
		CredentialID: credentialID,
		AdminID:      actor.ID,
		Action:       action,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		Details:      details,
		CreatedAt:    now,
	}
}

// VerificationCode is an emailed one-time code. Only its bcrypt hash is stored.
type VerificationCode struct {
	ID        uuid.UUID
	AdminID   string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsUsable reports whether the code may still be checked.
func (c *VerificationCode) IsUsable(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt) && c.Attempts < MaxVerificationAttempts
}

// AccessToken is a single-use reveal token: issued -> consumed | expired.
// Only the SHA-256 of the token is stored.
type AccessToken struct {
	ID         uuid.UUID
	AdminID    string
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// IsUsable reports whether the token is still in the issued state at now.
func (t *AccessToken) IsUsable(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}

// GatewayCredentials are decrypted merchant credentials, held only for the duration of a call.
type GatewayCredentials struct {
	ProductCode string
	SecretKey   string
	Environment Environment
	Sandbox     bool
}

// String never includes the secret.
func (c GatewayCredentials) String() string {
	return fmt.Sprintf("GatewayCredentials{product_code=%s environment=%s sandbox=%t}",
		MaskValue(c.ProductCode), c.Environment, c.Sandbox)
}

// GoString never includes the secret.
func (c GatewayCredentials) GoString() string {
	return c.String()
}
