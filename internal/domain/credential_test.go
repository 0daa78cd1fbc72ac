package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCredentialInput(t *testing.T) {
	tests := []struct {
		name        string
		productCode string
		secretKey   string
		env         Environment
		wantFields  []string
	}{
		{"valid test credentials", "EPAYTEST", "8gBm/:&EnhH.1/q", EnvironmentTest, nil},
		{"valid production credentials", "epay123", "supersecret", EnvironmentProduction, nil},
		{"test code need not start with EPAY", "NP001", "supersecret", EnvironmentTest, nil},
		{"production code without prefix", "NP0012", "supersecret", EnvironmentProduction, []string{"product_code"}},
		{"product code too short", "EP", "supersecret", EnvironmentTest, []string{"product_code"}},
		{"product code with symbols", "EPAY-01", "supersecret", EnvironmentTest, []string{"product_code"}},
		{"missing product code", "", "supersecret", EnvironmentTest, []string{"product_code"}},
		{"secret too short", "EPAYTEST", "short", EnvironmentTest, []string{"secret_key"}},
		{"secret too long", "EPAYTEST", strings.Repeat("x", 256), EnvironmentTest, []string{"secret_key"}},
		{"both invalid", "E!", "", EnvironmentTest, []string{"product_code", "secret_key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentialInput(tt.productCode, tt.secretKey, tt.env)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var domainErr *DomainError
			require.ErrorAs(t, err, &domainErr)
			fields, ok := domainErr.Details["fields"].(map[string][]string)
			require.True(t, ok)
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
			assert.Len(t, fields, len(tt.wantFields))
		})
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"abc", "***"},
		{"EPAYTEST", "********"},
		{"EPAYTEST1", "EPAY*EST1"},
		{"EPAY123456789", "EPAY*****6789"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskValue(tt.input))
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, EnvironmentTest, env)

	env, err = ParseEnvironment(" Production ")
	require.NoError(t, err)
	assert.Equal(t, EnvironmentProduction, env)

	_, err = ParseEnvironment("staging")
	assert.Error(t, err)
}

func TestAccessToken_IsUsable(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	token := &AccessToken{ExpiresAt: issued.Add(AccessTokenTTL)}

	assert.True(t, token.IsUsable(issued.Add(4*time.Minute)))
	assert.False(t, token.IsUsable(issued.Add(5*time.Minute)))

	consumed := issued.Add(time.Minute)
	token.ConsumedAt = &consumed
	assert.False(t, token.IsUsable(issued.Add(2*time.Minute)))
}

func TestVerificationCode_IsUsable(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	code := &VerificationCode{ExpiresAt: issued.Add(VerificationCodeTTL)}

	assert.True(t, code.IsUsable(issued))
	code.Attempts = MaxVerificationAttempts
	assert.False(t, code.IsUsable(issued))
}

func TestGatewayCredentials_StringRedactsSecret(t *testing.T) {
	creds := GatewayCredentials{ProductCode: "EPAY12345678", SecretKey: "do-not-print-me", Environment: EnvironmentProduction}

	assert.NotContains(t, creds.String(), "do-not-print-me")
	assert.NotContains(t, creds.GoString(), "do-not-print-me")
	assert.Contains(t, creds.String(), "EPAY****5678")
}
