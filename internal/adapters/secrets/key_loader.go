package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/crypto"
)

// developmentKeyMaterial is used only when no key is configured outside production
const developmentKeyMaterial = "qrmenu-billing-development-only-key"

// KeyConfig names where the vault's master keys live
type KeyConfig struct {
	// PrimaryPath is required in production
	PrimaryPath string
	// PreviousPaths hold retired keys still accepted for decryption
	PreviousPaths []string
	Production    bool
}

// LoadCipher reads the master keys from store and builds the credential cipher.
// Outside production a missing primary key falls back to a fixed development key.
func LoadCipher(ctx context.Context, store ports.SecretStore, cfg KeyConfig, logger *zap.Logger) (*crypto.Cipher, error) {
	primary, err := readKey(ctx, store, cfg.PrimaryPath)
	if err != nil {
		if cfg.Production {
			return nil, fmt.Errorf("load primary encryption key: %w", err)
		}
		logger.Warn("No encryption key configured, using development key", zap.Error(err))
		primary = []byte(developmentKeyMaterial)
	}

	var previous [][]byte
	for _, path := range cfg.PreviousPaths {
		key, err := readKey(ctx, store, path)
		if err != nil {
			logger.Warn("Skipping unreadable previous encryption key", zap.String("path", path), zap.Error(err))
			continue
		}
		previous = append(previous, key)
	}

	c, err := crypto.NewCipher(primary, previous...)
	if err != nil {
		return nil, err
	}

	logger.Info("Credential cipher ready", zap.Int("previous_keys", len(previous)))
	return c, nil
}

func readKey(ctx context.Context, store ports.SecretStore, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("key path not configured")
	}
	secret, err := store.GetSecret(ctx, path)
	if err != nil {
		return nil, err
	}
	return []byte(secret.Value), nil
}
