package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceSign(secret, message string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func TestSign(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		message string
	}{
		{"sandbox payment message", SandboxSecretKey, PaymentMessage("100", "11-201-13", SandboxProductCode)},
		{"production style message", "live-secret-key", PaymentMessage("999", "SUB_1a2b3c4d_5e6f7a8b_deadbeef", "EPAYNP01")},
		{"unicode secret", "सेवा-secret", "total_amount=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sign(tt.secret, tt.message)
			require.NoError(t, err)

			assert.Equal(t, referenceSign(tt.secret, tt.message), got)
			assert.Len(t, got, 44, "base64 of a 32 byte digest")

			again, err := Sign(tt.secret, tt.message)
			require.NoError(t, err)
			assert.Equal(t, got, again, "signing must be deterministic")
		})
	}
}

func TestSign_EmptyInputFailsLoudly(t *testing.T) {
	_, err := Sign("", "total_amount=1")
	assert.ErrorIs(t, err, ErrEmptySigningInput)

	_, err = Sign("secret", "")
	assert.ErrorIs(t, err, ErrEmptySigningInput)

	_, err = VerifySignature("", "m", "sig")
	assert.ErrorIs(t, err, ErrEmptySigningInput)
}

func TestSign_DifferentInputs(t *testing.T) {
	a, _ := Sign("key", PaymentMessage("999", "REF-1", "EPAYTEST"))
	b, _ := Sign("key", PaymentMessage("998", "REF-1", "EPAYTEST"))
	c, _ := Sign("other", PaymentMessage("999", "REF-1", "EPAYTEST"))

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestVerifySignature(t *testing.T) {
	message := PaymentMessage("999", "REF-1", "EPAYTEST")
	sig, err := Sign("key", message)
	require.NoError(t, err)

	ok, err := VerifySignature("key", message, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySignature("key", message, sig[:len(sig)-2]+"AA")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifySignature("wrong", message, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentMessage(t *testing.T) {
	assert.Equal(t,
		"total_amount=999,transaction_uuid=SUB_1,product_code=EPAYTEST",
		PaymentMessage("999", "SUB_1", "EPAYTEST"))
}

func TestSignedFieldsMessage(t *testing.T) {
	values := map[string]string{
		"transaction_code": "000AWEO",
		"status":           "COMPLETE",
		"total_amount":     "999.0",
		"transaction_uuid": "SUB_1",
		"product_code":     "EPAYTEST",
	}

	got := SignedFieldsMessage("transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names", values)

	assert.Equal(t,
		"transaction_code=000AWEO,status=COMPLETE,total_amount=999.0,transaction_uuid=SUB_1,product_code=EPAYTEST,signed_field_names=",
		got)
	assert.Equal(t, "total_amount=999.0", SignedFieldsMessage(" total_amount ,", values))
}
