package ports

import (
	"context"
	"time"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// StoreCredentialRequest saves an admin's gateway credentials
type StoreCredentialRequest struct {
	ProductCode string
	SecretKey   string
	Environment domain.Environment
	DisplayName string
}

// MaskedCredential is the only view of stored credentials outside a reveal
type MaskedCredential struct {
	ProductCode string
	SecretKey   string
	Environment domain.Environment
	IsActive    bool
	DisplayName string
	UpdatedAt   time.Time
}

// CredentialStatus summarizes the vault entry without any credential values
type CredentialStatus struct {
	Configured  bool
	IsActive    bool
	Environment domain.Environment
	UpdatedAt   *time.Time
}

// RevealChallenge is returned once a verification code has been sent
type RevealChallenge struct {
	SentTo    string
	ExpiresAt time.Time
}

// RevealGrant carries the single-use token issued after a correct code
type RevealGrant struct {
	Token     string
	ExpiresAt time.Time
}

// RevealedCredential holds plaintext credentials. Available is false when the
// stored secret could not be decrypted.
type RevealedCredential struct {
	Available   bool
	ProductCode string
	SecretKey   string
	Environment domain.Environment
}

// CredentialService defines the port for the credential vault
type CredentialService interface {
	Store(ctx context.Context, actor domain.Actor, req StoreCredentialRequest) (*MaskedCredential, error)
	Get(ctx context.Context, actor domain.Actor) (*MaskedCredential, error)
	Status(ctx context.Context, adminID string) (*CredentialStatus, error)

	// RequestReveal re-checks the password and emails a one-time code
	RequestReveal(ctx context.Context, actor domain.Actor, password string) (*RevealChallenge, error)
	// VerifyCode exchanges a correct code for a single-use reveal token
	VerifyCode(ctx context.Context, actor domain.Actor, code string) (*RevealGrant, error)
	// Reveal consumes the token and returns the decrypted credentials
	Reveal(ctx context.Context, actor domain.Actor, token string) (*RevealedCredential, error)

	Disable(ctx context.Context, actor domain.Actor, password string) error
	Enable(ctx context.Context, actor domain.Actor, password string) error
	AuditLog(ctx context.Context, adminID string, limit int) ([]*domain.AuditLogEntry, error)

	// ResolveGatewayCredentials decrypts credentials for a gateway call, falling back to sandbox
	ResolveGatewayCredentials(ctx context.Context, adminID string) (domain.GatewayCredentials, error)

	// ReencryptAll rewrites every secret under the primary key
	ReencryptAll(ctx context.Context) (*ReencryptReport, error)
}

// ReencryptReport counts the outcome of a key rotation
type ReencryptReport struct {
	Total     int
	Rotated   int
	Unchanged int
	Failed    []string
}
