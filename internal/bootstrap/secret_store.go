package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/secrets"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/config"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// OpenSecretStore selects the store holding the vault's master keys.
// Supports:
//   - env (default): ENCRYPTION_KEY_PATH names an environment variable
//   - file: ENCRYPTION_KEY_DIR holds one file per key (development only)
//   - vault: HashiCorp Vault KV, VAULT_ADDR plus token or approle auth
//   - aws: AWS Secrets Manager in AWS_REGION
//   - gcp: GCP Secret Manager in GCP_PROJECT_ID
//
// The returned close function is never nil.
func OpenSecretStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.SecretStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Encryption.Source {
	case config.KeySourceEnv:
		return secrets.NewEnvStore(), noop, nil

	case config.KeySourceFile:
		if cfg.IsProduction() {
			return nil, nil, fmt.Errorf("file key source is not allowed in production")
		}
		logger.Warn("Using file secret store - NOT for production use!",
			zap.String("dir", cfg.Encryption.FileDir),
		)
		return secrets.NewFileStore(cfg.Encryption.FileDir, logger), noop, nil

	case config.KeySourceVault:
		vc := secrets.DefaultVaultConfig(cfg.Vault.Address)
		vc.AuthMethod = cfg.Vault.AuthMethod
		vc.Token = cfg.Vault.Token
		vc.RoleID = cfg.Vault.RoleID
		vc.SecretID = cfg.Vault.SecretID
		vc.Namespace = cfg.Vault.Namespace
		vc.MountPath = cfg.Vault.MountPath
		vc.KVVersion = cfg.Vault.KVVersion
		vc.CacheTTL = cfg.Vault.CacheTTL
		store, err := secrets.NewVaultStore(vc, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init vault secret store: %w", err)
		}
		return store, noop, nil

	case config.KeySourceAWS:
		ac := secrets.DefaultAWSSecretsManagerConfig(cfg.AWS.Region)
		ac.Profile = cfg.AWS.Profile
		ac.Endpoint = cfg.AWS.Endpoint
		ac.CacheTTL = cfg.AWS.CacheTTL
		store, err := secrets.NewAWSSecretsManagerStore(ctx, ac, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init aws secret store: %w", err)
		}
		return store, noop, nil

	case config.KeySourceGCP:
		store, closeFn, err := secrets.NewGCPSecretManagerStore(ctx, &secrets.GCPSecretManagerConfig{
			ProjectID: cfg.GCP.ProjectID,
			CacheTTL:  cfg.GCP.CacheTTL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcp secret store: %w", err)
		}
		return store, closeFn, nil
	}

	return nil, nil, fmt.Errorf("unknown encryption key source %q", cfg.Encryption.Source)
}
