package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	svcports "github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/testutil/memstore"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/testutil/mocks"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/crypto"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

type fixture struct {
	svc       *Service
	store     *memstore.Store
	notifier  *mocks.RecordingNotifier
	passwords *mocks.MockPasswordVerifier
	clock     *timeutil.FixedClock
	logger    *mocks.MockLogger
	actor     domain.Actor
}

var sandboxCreds = domain.GatewayCredentials{
	ProductCode: "EPAYTEST",
	SecretKey:   "8gBm/:&EnhH.1/q",
	Environment: domain.EnvironmentTest,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := crypto.NewCipher([]byte("primary-key-material-for-tests"))
	require.NoError(t, err)

	f := &fixture{
		store:     memstore.New(),
		notifier:  &mocks.RecordingNotifier{},
		passwords: &mocks.MockPasswordVerifier{},
		clock:     &timeutil.FixedClock{T: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		logger:    &mocks.MockLogger{},
		actor: domain.Actor{
			Admin:     domain.Admin{ID: "admin-1", Email: "owner@restaurant.test"},
			IPAddress: "10.0.0.7",
			UserAgent: "test-agent",
		},
	}
	f.svc = NewService(f.store, f.store.Credentials(), c, f.passwords, f.notifier, sandboxCreds, f.clock, f.logger)
	return f
}

func (f *fixture) storeProduction(t *testing.T) {
	t.Helper()
	_, err := f.svc.Store(context.Background(), f.actor, svcports.StoreCredentialRequest{
		ProductCode: "EPAYLIVE123",
		SecretKey:   "live-secret-key-value",
		Environment: domain.EnvironmentProduction,
	})
	require.NoError(t, err)
}

func (f *fixture) allowPassword() {
	f.passwords.On("VerifyPassword", mock.Anything, "admin-1", "correct-horse").Return(true, nil)
}

func (f *fixture) sentCode(t *testing.T) string {
	t.Helper()
	sent := f.notifier.Sent()
	require.NotEmpty(t, sent)
	code, ok := sent[len(sent)-1].Data["code"].(string)
	require.True(t, ok)
	return code
}

func TestStore_MasksAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Store(ctx, f.actor, svcports.StoreCredentialRequest{
		ProductCode: "EPAYLIVE123",
		SecretKey:   "live-secret-key-value",
		Environment: domain.EnvironmentProduction,
		DisplayName: "Main branch",
	})
	require.NoError(t, err)
	assert.Equal(t, "EPAY***E123", view.ProductCode)
	assert.Equal(t, domain.SecretMask, view.SecretKey)
	assert.True(t, view.IsActive)

	rec, err := f.store.Credentials().GetByAdminID(ctx, nil, "admin-1")
	require.NoError(t, err)
	assert.NotContains(t, rec.EncryptedSecret, "live-secret-key-value")

	_, err = f.svc.Store(ctx, f.actor, svcports.StoreCredentialRequest{
		ProductCode: "EPAYLIVE456",
		SecretKey:   "another-secret-value",
		Environment: domain.EnvironmentProduction,
	})
	require.NoError(t, err)

	logs, err := f.svc.AuditLog(ctx, "admin-1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.AuditActionUpdated, logs[0].Action)
	assert.Equal(t, domain.AuditActionCreated, logs[1].Action)
	assert.Equal(t, "10.0.0.7", logs[1].IPAddress)
}

func TestStore_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   svcports.StoreCredentialRequest
		field string
	}{
		{"short product code", svcports.StoreCredentialRequest{ProductCode: "EP", SecretKey: "long-enough-secret"}, "product_code"},
		{"non alphanumeric code", svcports.StoreCredentialRequest{ProductCode: "EPAY-1", SecretKey: "long-enough-secret"}, "product_code"},
		{"production without prefix", svcports.StoreCredentialRequest{ProductCode: "SHOP123", SecretKey: "long-enough-secret", Environment: domain.EnvironmentProduction}, "product_code"},
		{"short secret", svcports.StoreCredentialRequest{ProductCode: "EPAYTEST", SecretKey: "short"}, "secret_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Store(context.Background(), f.actor, tt.req)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))

			var de *domain.DomainError
			require.True(t, errors.As(err, &de))
			assert.Contains(t, de.Details["fields"], tt.field)

			_, err = f.store.Credentials().GetByAdminID(context.Background(), nil, "admin-1")
			assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
		})
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Status(ctx, "admin-1")
	require.NoError(t, err)
	assert.False(t, st.Configured)

	f.storeProduction(t)
	st, err = f.svc.Status(ctx, "admin-1")
	require.NoError(t, err)
	assert.True(t, st.Configured)
	assert.True(t, st.IsActive)
	assert.Equal(t, domain.EnvironmentProduction, st.Environment)
}

func TestRevealFlow(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	ctx := context.Background()

	challenge, err := f.svc.RequestReveal(ctx, f.actor, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, f.clock.T.Add(domain.VerificationCodeTTL), challenge.ExpiresAt)

	code := f.sentCode(t)
	assert.Len(t, code, 6)
	assert.Equal(t, "owner@restaurant.test", f.notifier.Sent()[0].Recipient)

	grant, err := f.svc.VerifyCode(ctx, f.actor, code)
	require.NoError(t, err)
	require.NotEmpty(t, grant.Token)

	revealed, err := f.svc.Reveal(ctx, f.actor, grant.Token)
	require.NoError(t, err)
	assert.True(t, revealed.Available)
	assert.Equal(t, "EPAYLIVE123", revealed.ProductCode)
	assert.Equal(t, "live-secret-key-value", revealed.SecretKey)

	t.Run("token is single use", func(t *testing.T) {
		_, err := f.svc.Reveal(ctx, f.actor, grant.Token)
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	})

	t.Run("code is single use", func(t *testing.T) {
		_, err := f.svc.VerifyCode(ctx, f.actor, code)
		assert.ErrorIs(t, err, domain.ErrInvalidCode)
	})
}

func TestRequestReveal_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.storeProduction(t)
	f.passwords.On("VerifyPassword", mock.Anything, "admin-1", "wrong").Return(false, nil)

	_, err := f.svc.RequestReveal(context.Background(), f.actor, "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)
	assert.Empty(t, f.notifier.Sent())
}

func TestRequestReveal_NotConfigured(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()

	_, err := f.svc.RequestReveal(context.Background(), f.actor, "correct-horse")
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestRequestReveal_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	f.notifier.Err = errors.New("smtp relay down")

	_, err := f.svc.RequestReveal(context.Background(), f.actor, "correct-horse")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeInternalError))
}

func TestRequestReveal_InvalidatesEarlierCodes(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	ctx := context.Background()

	_, err := f.svc.RequestReveal(ctx, f.actor, "correct-horse")
	require.NoError(t, err)
	first := f.sentCode(t)

	f.clock.Advance(time.Second)
	_, err = f.svc.RequestReveal(ctx, f.actor, "correct-horse")
	require.NoError(t, err)
	second := f.sentCode(t)

	if first != second {
		_, err = f.svc.VerifyCode(ctx, f.actor, first)
		assert.ErrorIs(t, err, domain.ErrInvalidCode)
	}
	_, err = f.svc.VerifyCode(ctx, f.actor, second)
	assert.NoError(t, err)
}

func TestVerifyCode_AttemptLimit(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	ctx := context.Background()

	_, err := f.svc.RequestReveal(ctx, f.actor, "correct-horse")
	require.NoError(t, err)
	code := f.sentCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < domain.MaxVerificationAttempts; i++ {
		_, err := f.svc.VerifyCode(ctx, f.actor, wrong)
		require.ErrorIs(t, err, domain.ErrInvalidCode)
	}

	_, err = f.svc.VerifyCode(ctx, f.actor, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode, "code is burned after too many attempts")
}

func TestVerifyCode_Expired(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	ctx := context.Background()

	_, err := f.svc.RequestReveal(ctx, f.actor, "correct-horse")
	require.NoError(t, err)
	code := f.sentCode(t)

	f.clock.Advance(domain.VerificationCodeTTL + time.Second)
	_, err = f.svc.VerifyCode(ctx, f.actor, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestReveal_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	ctx := context.Background()

	_, err := f.svc.RequestReveal(ctx, f.actor, "correct-horse")
	require.NoError(t, err)
	grant, err := f.svc.VerifyCode(ctx, f.actor, f.sentCode(t))
	require.NoError(t, err)

	f.clock.Advance(domain.AccessTokenTTL + time.Second)
	_, err = f.svc.Reveal(ctx, f.actor, grant.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestReveal_OtherAdminsToken(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	ctx := context.Background()

	_, err := f.svc.RequestReveal(ctx, f.actor, "correct-horse")
	require.NoError(t, err)
	grant, err := f.svc.VerifyCode(ctx, f.actor, f.sentCode(t))
	require.NoError(t, err)

	intruder := domain.Actor{Admin: domain.Admin{ID: "admin-2"}}
	_, err = f.svc.Reveal(ctx, intruder, grant.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestReveal_CorruptedCiphertext(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	ctx := context.Background()

	rec, err := f.store.Credentials().GetByAdminID(ctx, nil, "admin-1")
	require.NoError(t, err)
	rec.EncryptedSecret = "v1:bm90LXJlYWxseS1jaXBoZXJ0ZXh0"
	require.NoError(t, f.store.Credentials().Update(ctx, nil, rec))

	_, err = f.svc.RequestReveal(ctx, f.actor, "correct-horse")
	require.NoError(t, err)
	grant, err := f.svc.VerifyCode(ctx, f.actor, f.sentCode(t))
	require.NoError(t, err)

	revealed, err := f.svc.Reveal(ctx, f.actor, grant.Token)
	require.NoError(t, err)
	assert.False(t, revealed.Available)
	assert.Empty(t, revealed.SecretKey)

	t.Run("token consumption is rolled back", func(t *testing.T) {
		again, err := f.svc.Reveal(ctx, f.actor, grant.Token)
		require.NoError(t, err)
		assert.False(t, again.Available)
	})

	t.Run("failed view is audited", func(t *testing.T) {
		logs, err := f.svc.AuditLog(ctx, "admin-1", 1)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, domain.AuditActionViewed, logs[0].Action)
		assert.Equal(t, "reveal_failed", logs[0].Details["stage"])
	})
}

func TestDisableEnable(t *testing.T) {
	f := newFixture(t)
	f.allowPassword()
	f.storeProduction(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Disable(ctx, f.actor, "correct-horse"))
	creds, err := f.svc.ResolveGatewayCredentials(ctx, "admin-1")
	require.NoError(t, err)
	assert.True(t, creds.Sandbox, "disabled credentials fall back to sandbox")

	require.NoError(t, f.svc.Enable(ctx, f.actor, "correct-horse"))
	creds, err = f.svc.ResolveGatewayCredentials(ctx, "admin-1")
	require.NoError(t, err)
	assert.False(t, creds.Sandbox)
	assert.Equal(t, "EPAYLIVE123", creds.ProductCode)

	logs, err := f.svc.AuditLog(ctx, "admin-1", 0)
	require.NoError(t, err)
	actions := make([]domain.AuditAction, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, domain.AuditActionDisabled)
	assert.Contains(t, actions, domain.AuditActionEnabled)
}

func TestDisable_RequiresPassword(t *testing.T) {
	f := newFixture(t)
	f.storeProduction(t)

	err := f.svc.Disable(context.Background(), f.actor, "")
	assert.True(t, domain.IsValidationError(err))
}

func TestResolveGatewayCredentials(t *testing.T) {
	t.Run("sandbox when not configured", func(t *testing.T) {
		f := newFixture(t)
		creds, err := f.svc.ResolveGatewayCredentials(context.Background(), "admin-1")
		require.NoError(t, err)
		assert.True(t, creds.Sandbox)
		assert.Equal(t, "EPAYTEST", creds.ProductCode)
	})

	t.Run("tenant credentials audited as accessed", func(t *testing.T) {
		f := newFixture(t)
		f.storeProduction(t)
		ctx := context.Background()

		creds, err := f.svc.ResolveGatewayCredentials(ctx, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, "live-secret-key-value", creds.SecretKey)
		assert.Equal(t, domain.EnvironmentProduction, creds.Environment)

		logs, err := f.svc.AuditLog(ctx, "admin-1", 1)
		require.NoError(t, err)
		assert.Equal(t, domain.AuditActionAccessed, logs[0].Action)
	})

	t.Run("undecryptable secret falls back with a warning", func(t *testing.T) {
		f := newFixture(t)
		f.storeProduction(t)
		ctx := context.Background()

		rec, err := f.store.Credentials().GetByAdminID(ctx, nil, "admin-1")
		require.NoError(t, err)
		rec.EncryptedSecret = "garbage"
		require.NoError(t, f.store.Credentials().Update(ctx, nil, rec))

		creds, err := f.svc.ResolveGatewayCredentials(ctx, "admin-1")
		require.NoError(t, err)
		assert.True(t, creds.Sandbox)
		assert.True(t, f.logger.HasWarning("gateway secret undecryptable, falling back to sandbox credentials"))
	})
}

func TestReencryptAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	oldCipher, err := crypto.NewCipher([]byte("old-key-material-for-tests"))
	require.NoError(t, err)
	oldSecret, err := oldCipher.Encrypt("rotated-secret-value")
	require.NoError(t, err)

	rotating, err := crypto.NewCipher([]byte("primary-key-material-for-tests"), []byte("old-key-material-for-tests"))
	require.NoError(t, err)
	f.svc.cipher = rotating

	f.storeProduction(t)
	_, err = f.store.Credentials().Upsert(ctx, nil, &domain.CredentialRecord{
		AdminID:         "admin-2",
		ProductCode:     "EPAYOLD",
		EncryptedSecret: oldSecret,
		Environment:     domain.EnvironmentProduction,
		IsActive:        true,
	})
	require.NoError(t, err)
	_, err = f.store.Credentials().Upsert(ctx, nil, &domain.CredentialRecord{
		AdminID:         "admin-3",
		ProductCode:     "EPAYBAD",
		EncryptedSecret: "v1:broken",
		Environment:     domain.EnvironmentProduction,
	})
	require.NoError(t, err)

	report, err := f.svc.ReencryptAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Rotated)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, []string{"admin-3"}, report.Failed)

	rec, err := f.store.Credentials().GetByAdminID(ctx, nil, "admin-2")
	require.NoError(t, err)
	assert.False(t, rotating.NeedsRotation(rec.EncryptedSecret))

	primaryOnly, err := crypto.NewCipher([]byte("primary-key-material-for-tests"))
	require.NoError(t, err)
	plain, err := primaryOnly.Decrypt(rec.EncryptedSecret)
	require.NoError(t, err)
	assert.Equal(t, "rotated-secret-value", plain)
}
