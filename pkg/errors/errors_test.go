package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "validation failed", errs.Error())

	errs.Add("secret_key", "must be at least 8 characters")
	errs.Add("product_code", "must start with EPAY in production")
	errs.Add("product_code", "must be alphanumeric")

	assert.True(t, errs.HasErrors())
	assert.Equal(t, map[string][]string{
		"secret_key":   {"must be at least 8 characters"},
		"product_code": {"must start with EPAY in production", "must be alphanumeric"},
	}, errs.Fields())
	assert.Equal(t,
		"validation failed: product_code: must be alphanumeric; product_code: must start with EPAY in production; secret_key: must be at least 8 characters",
		errs.Error())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("amount", "must equal the monthly fee")
	assert.Equal(t, "validation error on field 'amount': must equal the monthly fee", err.Error())
}
