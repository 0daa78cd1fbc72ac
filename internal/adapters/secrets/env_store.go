package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// envStore reads secrets from environment variables. The path is the variable name.
type envStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore creates a SecretStore over the process environment
func NewEnvStore() ports.SecretStore {
	return &envStore{lookup: os.LookupEnv}
}

// GetSecret returns the value of the environment variable named path
func (s *envStore) GetSecret(_ context.Context, path string) (*ports.Secret, error) {
	value, ok := s.lookup(path)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret not found: %s", path)
	}
	return &ports.Secret{Value: value, Version: "env"}, nil
}

// fileStore reads secrets from files under a base directory.
// WARNING: development only.
type fileStore struct {
	basePath string
	logger   *zap.Logger
}

// NewFileStore creates a SecretStore over a local directory
func NewFileStore(basePath string, logger *zap.Logger) ports.SecretStore {
	return &fileStore{basePath: basePath, logger: logger}
}

// GetSecret reads a plain-text or {"value": ...} JSON file
func (s *fileStore) GetSecret(_ context.Context, path string) (*ports.Secret, error) {
	clean := filepath.Clean("/" + path)
	data, err := os.ReadFile(filepath.Join(s.basePath, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	s.logger.Debug("Read secret from filesystem", zap.String("path", path))

	var doc struct {
		Value     string            `json:"value"`
		Tags      map[string]string `json:"tags"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &doc); err == nil && doc.Value != "" {
		return &ports.Secret{Value: doc.Value, Version: "v1", Metadata: doc.Tags, CreatedAt: doc.CreatedAt}, nil
	}
	return &ports.Secret{Value: strings.TrimRight(string(data), "\r\n"), Version: "v1"}, nil
}
