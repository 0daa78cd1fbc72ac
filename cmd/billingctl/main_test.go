package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", t.TempDir() + "/none.env"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("JWT_SECRET", "cli-test-secret")
	t.Setenv("JWT_ISSUER", "billing")

	out, err := execute(t, "token", "admin-7", "--email", "owner@restaurant.test", "--ttl", "10m")
	require.NoError(t, err)

	tokens, err := auth.NewJWTManager([]byte("cli-test-secret"), "billing", time.Minute)
	require.NoError(t, err)
	admin, err := tokens.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "admin-7", admin.ID)
	assert.Equal(t, "owner@restaurant.test", admin.Email)
}

func TestTokenCommand_Refusals(t *testing.T) {
	t.Run("production", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DATABASE_URL", "postgres://billing@db/billing")
		t.Setenv("JWT_SECRET", "cli-test-secret")
		t.Setenv("CRON_SECRET", "cron")

		_, err := execute(t, "token", "admin-7")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "production")
	})

	t.Run("no secret", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "development")
		t.Setenv("JWT_SECRET", "")

		_, err := execute(t, "token", "admin-7")
		assert.Error(t, err)
	})
}

func TestSweepCommand_RejectsShortWindow(t *testing.T) {
	_, err := execute(t, "sweep", "--older-than", "10s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--older-than")
}

func TestMigrateCommand_RequiresSubcommand(t *testing.T) {
	_, err := execute(t, "migrate")
	assert.Error(t, err)
}
