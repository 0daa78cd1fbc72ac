package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// SignedFieldNames is the field list signed on every payment-initiation request.
const SignedFieldNames = "total_amount,transaction_uuid,product_code"

// ErrEmptySigningInput is returned when the secret or message is empty. It always
// indicates a programming or configuration error, never a user error.
var ErrEmptySigningInput = errors.New("esewa: signing requires a non-empty secret and message")

// Sign computes base64(HMAC-SHA256(secret, message)).
func Sign(secret, message string) (string, error) {
	if secret == "" || message == "" {
		return "", ErrEmptySigningInput
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// VerifySignature reports whether signature matches message under secret, in constant time.
func VerifySignature(secret, message, signature string) (bool, error) {
	expected, err := Sign(secret, message)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// PaymentMessage builds the canonical string signed on payment initiation and verification.
func PaymentMessage(totalAmount, transactionRef, productCode string) string {
	return fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s",
		totalAmount, transactionRef, productCode)
}

// SignedFieldsMessage builds name=value pairs for each comma-separated name in
// signedFieldNames, in order. Missing values are signed as empty strings.
func SignedFieldsMessage(signedFieldNames string, values map[string]string) string {
	names := strings.Split(signedFieldNames, ",")
	parts := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		parts = append(parts, name+"="+values[name])
	}
	return strings.Join(parts, ",")
}
