package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

func TestZapLoggerAdapter_RedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Warn("Reveal attempted",
		ports.String("admin_id", "admin-1"),
		ports.String("secret_key", "live-secret-key"),
		ports.String("Verification_Token", "tok"),
		ports.Err(errors.New("decrypt failed")),
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "admin-1", fields["admin_id"])
	assert.Equal(t, "[REDACTED]", fields["secret_key"])
	assert.Equal(t, "[REDACTED]", fields["Verification_Token"])
	assert.Equal(t, "decrypt failed", fields["error"])
}

func TestZapLoggerAdapter_Levels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Debug("hidden")
	logger.Info("shown", ports.Int("count", 2))
	logger.Error("failed", ports.Bool("retryable", true))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
	assert.EqualValues(t, 2, logs.All()[0].ContextMap()["count"])
}
