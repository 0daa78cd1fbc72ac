// Package httputil holds the JSON response helpers shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/encoding"
)

// MaxBodyBytes bounds every JSON request body
const MaxBodyBytes = 64 << 10

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RespondJSON writes v as the JSON body with the given status
func RespondJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	body, err := encoding.EncodeJSON(v)
	if err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

// RespondMessage writes {"success": false, "error": message}
func RespondMessage(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	RespondJSON(w, logger, status, ErrorResponse{Error: message})
}

// RespondError maps err to an HTTP status. Domain errors expose their code, message and
// details; anything else is logged and reported as an internal error.
func RespondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		logger.Error("Unhandled error", zap.Error(err))
		RespondJSON(w, logger, http.StatusInternalServerError, ErrorResponse{
			Error: domain.ErrInternalError.Message,
			Code:  string(domain.ErrorCodeInternalError),
		})
		return
	}

	status := StatusFor(de.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("code", string(de.Code)), zap.Error(err))
	}

	resp := ErrorResponse{Error: de.Message, Code: string(de.Code)}
	if len(de.Details) > 0 {
		resp.Details = de.Details
	}
	if status == http.StatusInternalServerError {
		// internal causes carry driver text
		resp.Details = nil
	}
	if domain.IsRetryable(err) {
		w.Header().Set("Retry-After", "5")
	}
	RespondJSON(w, logger, status, resp)
}

// StatusFor maps a domain error code to its HTTP status
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodeValidationFailed,
		domain.ErrorCodeTrialStillActive,
		domain.ErrorCodeTrialAlreadyActive,
		domain.ErrorCodeSubscriptionActive,
		domain.ErrorCodePaymentTypeNotAllowed,
		domain.ErrorCodeSubscriptionNotRenewable,
		domain.ErrorCodeInvalidCode,
		domain.ErrorCodeSignatureMismatch:
		return http.StatusBadRequest
	case domain.ErrorCodeAuthMissing, domain.ErrorCodeAuthInvalid:
		return http.StatusUnauthorized
	case domain.ErrorCodeForbidden, domain.ErrorCodeInvalidPassword, domain.ErrorCodeTokenInvalid:
		return http.StatusForbidden
	case domain.ErrorCodeNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeDuplicateTransaction,
		domain.ErrorCodeConcurrentModification,
		domain.ErrorCodePaymentProcessing:
		return http.StatusConflict
	case domain.ErrorCodeGatewayUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrorCodeDecryptionFailure:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// DecodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidationError("body", "request body is not valid JSON")
	}
	return nil
}

// QueryInt parses an optional positive integer query parameter
func QueryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, name+" must be a non-negative integer")
	}
	return n, nil
}
