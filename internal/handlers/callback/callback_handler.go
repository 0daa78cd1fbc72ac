// Package callback handles the browser redirects the gateway sends after a payment.
package callback

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/esewa"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
)

// Error reasons passed to the frontend
const (
	ReasonInvalidReference   = "invalid_reference"
	ReasonRecordNotFound     = "record_not_found"
	ReasonVerificationFailed = "verification_failed"
	ReasonPending            = "verification_pending"
	ReasonSecurity           = "security_check_failed"
	ReasonGeneral            = "general_error"
)

// Handler serves the success and failure redirects. Both run the same verification:
// the gateway's answer decides the outcome, never the URL the browser arrived on.
type Handler struct {
	service     ports.BillingService
	logger      *zap.Logger
	frontendURL string
}

// NewHandler creates the callback handler. frontendURL is where the browser is sent afterwards.
func NewHandler(service ports.BillingService, logger *zap.Logger, frontendURL string) *Handler {
	return &Handler{
		service:     service,
		logger:      logger,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Success handles GET /payment/success
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "success")
}

// Failure handles GET /payment/failure
func (h *Handler) Failure(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "failure")
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, route string) {
	h.logger.Info("Gateway callback received",
		zap.String("route", route),
		zap.String("remote_addr", r.RemoteAddr),
	)

	cb, err := esewa.ParseCallback(r.URL.Query())
	if err != nil {
		h.logger.Warn("Gateway callback without transaction reference",
			zap.String("route", route),
			zap.Error(err),
		)
		h.redirectFailure(w, r, ReasonInvalidReference, "Invalid payment reference. Please try again.", "")
		return
	}

	result, err := h.service.VerifyPayment(r.Context(), ports.VerifyPaymentRequest{
		TransactionRef: cb.TransactionRef,
		Callback:       cb,
	})
	if err != nil {
		h.redirectError(w, r, cb.TransactionRef, err)
		return
	}

	if result.Outcome == domain.PaymentOutcomeSucceeded {
		q := url.Values{}
		q.Set("payment", "success")
		q.Set("subscription", "active")
		q.Set("transaction_id", result.TransactionRef)
		q.Set("message", "Payment successful! Please login to access your subscription.")
		h.redirect(w, r, q)
		return
	}

	message := esewa.GetResponseCode(result.Code).UserMessage
	if message == "" {
		message = "Payment verification failed. Please try again."
	}
	h.redirectFailure(w, r, ReasonVerificationFailed, message, result.TransactionRef)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, ref string, err error) {
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		h.redirectFailure(w, r, ReasonRecordNotFound, "Payment record not found. Please try again.", "")
	case domain.IsDomainError(err, domain.ErrorCodeGatewayUnavailable):
		// attempt stays open; the frontend polls verify
		h.redirectFailure(w, r, ReasonPending, "We could not confirm your payment yet. Please check again shortly.", ref)
	case domain.IsDomainError(err, domain.ErrorCodeSignatureMismatch),
		domain.IsDomainError(err, domain.ErrorCodeDuplicateTransaction):
		h.redirectFailure(w, r, ReasonSecurity, "Payment could not be verified. Please contact support.", ref)
	case domain.IsValidationError(err):
		h.redirectFailure(w, r, ReasonInvalidReference, "Invalid payment reference. Please try again.", "")
	default:
		h.logger.Error("Gateway callback verification failed",
			zap.String("transaction_ref", ref),
			zap.Error(err),
		)
		h.redirectFailure(w, r, ReasonGeneral, "Payment processing error. Please try again.", ref)
	}
}

func (h *Handler) redirectFailure(w http.ResponseWriter, r *http.Request, reason, message, ref string) {
	q := url.Values{}
	q.Set("payment", "failed")
	q.Set("error", reason)
	q.Set("message", message)
	if ref != "" {
		q.Set("transaction_id", ref)
	}
	h.redirect(w, r, q)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, q url.Values) {
	http.Redirect(w, r, h.frontendURL+"/admin/login?"+q.Encode(), http.StatusFound)
}
