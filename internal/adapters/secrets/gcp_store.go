package secrets

import (
	"context"
	"fmt"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// GCPSecretManagerConfig contains configuration for GCP Secret Manager
type GCPSecretManagerConfig struct {
	ProjectID string
	CacheTTL  time.Duration
}

type gcpStore struct {
	client    *secretmanager.Client
	projectID string
	logger    *zap.Logger
	cache     *secretCache
}

// NewGCPSecretManagerStore creates a SecretStore reading the latest version of GCP secrets.
// The returned close function releases the client connection.
func NewGCPSecretManagerStore(ctx context.Context, cfg *GCPSecretManagerConfig, logger *zap.Logger) (ports.SecretStore, func() error, error) {
	if cfg.ProjectID == "" {
		return nil, nil, fmt.Errorf("GCP project ID is required")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}

	logger.Info("GCP Secret Manager store initialized", zap.String("project_id", cfg.ProjectID))

	store := &gcpStore{
		client:    client,
		projectID: cfg.ProjectID,
		logger:    logger,
		cache:     newSecretCache(cfg.CacheTTL),
	}
	return store, client.Close, nil
}

// GetSecret reads projects/<project>/secrets/<path>/versions/latest
func (s *gcpStore) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := s.cache.get(path); cached != nil {
		return cached, nil
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, path)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		s.logger.Error("Failed to access GCP secret", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to access secret %s: %w", path, err)
	}

	secret := &ports.Secret{
		Value:    string(result.GetPayload().GetData()),
		Version:  result.GetName(),
		Metadata: map[string]string{"project_id": s.projectID},
	}
	s.cache.set(path, secret)
	return secret, nil
}
