package ports

import "context"

// PasswordVerifier re-checks an admin's password against the identity store
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, adminID, password string) (bool, error)
}

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., encryption key material)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretStore reads secrets from a secret management service.
// Implementations: HashiCorp Vault KV, AWS Secrets Manager, environment variables.
type SecretStore interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - AWS: "qrmenu/billing/encryption-key"
	//   - Vault: "qrmenu/billing/encryption-key" under the KV mount
	//   - Env: the variable name
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
