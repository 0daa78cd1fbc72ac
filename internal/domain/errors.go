package domain

import (
	"errors"
	"fmt"

	pkgerrors "github.com/prajwal851851/QRCODE-PROJECT/pkg/errors"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Authentication & Authorization Errors (AUTH_*)
	ErrorCodeAuthMissing     ErrorCode = "AUTH_MISSING"
	ErrorCodeAuthInvalid     ErrorCode = "AUTH_INVALID"
	ErrorCodeForbidden       ErrorCode = "AUTH_FORBIDDEN"
	ErrorCodeInvalidPassword ErrorCode = "AUTH_INVALID_PASSWORD"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Lookup Errors
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"

	// Subscription Guard Errors (SUBSCRIPTION_*)
	ErrorCodeTrialStillActive         ErrorCode = "trial_still_active"
	ErrorCodeTrialAlreadyActive       ErrorCode = "trial_already_active"
	ErrorCodeSubscriptionActive       ErrorCode = "subscription_already_active"
	ErrorCodePaymentProcessing        ErrorCode = "payment_already_processing"
	ErrorCodePaymentTypeNotAllowed    ErrorCode = "payment_type_not_allowed"
	ErrorCodeSubscriptionNotRenewable ErrorCode = "subscription_not_renewable"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrorCodeSignatureMismatch  ErrorCode = "GATEWAY_SIGNATURE_MISMATCH"

	// Idempotency Errors
	ErrorCodeDuplicateTransaction ErrorCode = "DUPLICATE_TRANSACTION"

	// Vault Errors (VAULT_*)
	ErrorCodeDecryptionFailure ErrorCode = "VAULT_DECRYPTION_FAILURE"
	ErrorCodeInvalidCode       ErrorCode = "VAULT_INVALID_CODE"
	ErrorCodeTokenInvalid      ErrorCode = "VAULT_TOKEN_INVALID"

	// Internal Errors (INTERNAL_*)
	ErrorCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrorCodeInternalError          ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError          ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches two domain errors by code and message so sentinel comparisons survive WithDetail copies.
func (e *DomainError) Is(target error) bool {
	other, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return other.Code == e.Code && other.Message == e.Message
}

// WithDetail returns a copy of the error carrying an extra detail field.
// Sentinels are shared, so the receiver is never mutated.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Err: e.Err, Details: details, Code: e.Code, Message: e.Message}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	return GetErrorCode(err) == ErrorCodeNotFound
}

// IsAuthError checks if an error is authentication/authorization related
func IsAuthError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeAuthMissing, ErrorCodeAuthInvalid, ErrorCodeForbidden, ErrorCodeInvalidPassword:
		return true
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorCode(err) == ErrorCodeValidationFailed
}

// IsGuardRejection reports whether a payment request was refused by the subscription guard table.
func IsGuardRejection(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeTrialStillActive, ErrorCodeTrialAlreadyActive, ErrorCodeSubscriptionActive,
		ErrorCodePaymentProcessing, ErrorCodePaymentTypeNotAllowed, ErrorCodeSubscriptionNotRenewable:
		return true
	}
	return false
}

// IsRetryable reports whether the caller may safely retry the same request later.
func IsRetryable(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeGatewayUnavailable, ErrorCodeConcurrentModification:
		return true
	}
	return false
}

// NewValidationError builds a VALIDATION_FAILED error for a single field.
func NewValidationError(field, message string) *DomainError {
	return WrapError(ErrorCodeValidationFailed, message, pkgerrors.NewValidationError(field, message)).
		WithDetail("field", field)
}

// ValidationFailed wraps a set of field errors collected during request validation.
func ValidationFailed(errs pkgerrors.ValidationErrors) *DomainError {
	return WrapError(ErrorCodeValidationFailed, errs.Error(), errs).WithDetail("fields", errs.Fields())
}

// Structured error instances
var (
	ErrAuthMissing     = NewDomainError(ErrorCodeAuthMissing, "authentication required")
	ErrAuthInvalid     = NewDomainError(ErrorCodeAuthInvalid, "invalid authentication")
	ErrForbidden       = NewDomainError(ErrorCodeForbidden, "access denied")
	ErrInvalidPassword = NewDomainError(ErrorCodeInvalidPassword, "invalid password")

	ErrSubscriptionNotFound   = NewDomainError(ErrorCodeNotFound, "subscription not found")
	ErrPaymentNotFound        = NewDomainError(ErrorCodeNotFound, "payment attempt not found")
	ErrBillingRecordNotFound  = NewDomainError(ErrorCodeNotFound, "billing record not found")
	ErrCredentialNotFound     = NewDomainError(ErrorCodeNotFound, "gateway credentials not configured")
	ErrVerificationNotPending = NewDomainError(ErrorCodeNotFound, "no verification code pending")

	ErrTrialStillActive         = NewDomainError(ErrorCodeTrialStillActive, "trial period is still active")
	ErrTrialAlreadyActive       = NewDomainError(ErrorCodeTrialAlreadyActive, "trial is already active")
	ErrSubscriptionActive       = NewDomainError(ErrorCodeSubscriptionActive, "subscription is already active")
	ErrPaymentProcessing        = NewDomainError(ErrorCodePaymentProcessing, "a payment is already being processed")
	ErrPaymentTypeNotAllowed    = NewDomainError(ErrorCodePaymentTypeNotAllowed, "payment type not allowed in current subscription state")
	ErrSubscriptionNotRenewable = NewDomainError(ErrorCodeSubscriptionNotRenewable, "subscription cannot be re-enrolled in its current state")

	ErrGatewayUnavailable = NewDomainError(ErrorCodeGatewayUnavailable, "payment gateway unavailable, try again later")
	ErrSignatureMismatch  = NewDomainError(ErrorCodeSignatureMismatch, "gateway signature mismatch")

	ErrDuplicateTransaction = NewDomainError(ErrorCodeDuplicateTransaction, "transaction reference conflicts with an existing payment")

	ErrDecryptionFailure = NewDomainError(ErrorCodeDecryptionFailure, "stored secret could not be decrypted")
	ErrInvalidCode       = NewDomainError(ErrorCodeInvalidCode, "invalid or expired verification code")
	ErrTokenInvalid      = NewDomainError(ErrorCodeTokenInvalid, "invalid, expired or already used verification token")

	ErrConcurrentModification = NewDomainError(ErrorCodeConcurrentModification, "subscription was modified concurrently, try again")
	ErrInternalError          = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError          = NewDomainError(ErrorCodeDatabaseError, "database error")
)
