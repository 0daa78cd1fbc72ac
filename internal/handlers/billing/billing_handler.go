// Package billing serves the admin-facing subscription and payment endpoints.
package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/esewa"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/auth"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	domainports "github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/handlers/httputil"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/resilience"
)

// Handler serves /api/billing. Every route expects AdminAuth to have run.
type Handler struct {
	service  ports.BillingService
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
}

// NewHandler creates the billing handler. A nil timeouts uses the defaults.
func NewHandler(service ports.BillingService, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{service: service, timeouts: timeouts, logger: logger}
}

// Register mounts the billing routes on mux under prefix
func (h *Handler) Register(mux *http.ServeMux, prefix string, wrap func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"GET " + prefix + "/subscription/status":  h.Status,
		"POST " + prefix + "/subscription/create": h.Enroll,
		"POST " + prefix + "/subscription/cancel": h.Cancel,
		"GET " + prefix + "/subscription/access":  h.Access,
		"POST " + prefix + "/payment/initiate":    h.InitiatePayment,
		"POST " + prefix + "/payment/verify":      h.VerifyPayment,
		"GET " + prefix + "/payment/history":      h.PaymentHistory,
		"GET " + prefix + "/payment/lookup":       h.LookupPayment,
		"GET " + prefix + "/billing/history":      h.BillingHistory,
		"POST " + prefix + "/refund-requests":     h.CreateRefundRequest,
		"GET " + prefix + "/refund-requests":      h.ListRefundRequests,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, wrap(h.withDeadline(fn)))
	}
}

// withDeadline bounds every request by the handler budget
func (h *Handler) withDeadline(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := h.timeouts.HandlerContext(r.Context())
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

// StatusResponse is the body of GET /subscription/status
type StatusResponse struct {
	HasSubscription      bool                      `json:"has_subscription"`
	Status               domain.SubscriptionStatus `json:"status,omitempty"`
	IsTrialActive        bool                      `json:"is_trial_active"`
	IsSubscriptionActive bool                      `json:"is_subscription_active"`
	HasAccess            bool                      `json:"has_access"`
	DaysRemaining        int                       `json:"days_remaining"`
	TrialStart           *time.Time                `json:"trial_start,omitempty"`
	TrialEnd             *time.Time                `json:"trial_end,omitempty"`
	SubscriptionStart    *time.Time                `json:"subscription_start,omitempty"`
	SubscriptionEnd      *time.Time                `json:"subscription_end,omitempty"`
	MonthlyFee           *decimal.Decimal          `json:"monthly_fee,omitempty"`
	Currency             string                    `json:"currency,omitempty"`
	NextPaymentAt        *time.Time                `json:"next_payment_at,omitempty"`
}

// Status handles GET /subscription/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	view, err := h.service.Status(r.Context(), admin.ID)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	resp := StatusResponse{
		HasSubscription:      view.HasSubscription,
		Status:               view.Status,
		IsTrialActive:        view.IsTrialActive,
		IsSubscriptionActive: view.IsSubscriptionActive,
		HasAccess:            view.HasAccess,
		DaysRemaining:        view.DaysRemaining,
		TrialStart:           view.TrialStart,
		TrialEnd:             view.TrialEnd,
		SubscriptionStart:    view.SubscriptionStart,
		SubscriptionEnd:      view.SubscriptionEnd,
		Currency:             view.Currency,
		NextPaymentAt:        view.NextPaymentAt,
	}
	if view.HasSubscription {
		fee := view.MonthlyFee
		resp.MonthlyFee = &fee
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, resp)
}

// EnrollResponse is the body of POST /subscription/create
type EnrollResponse struct {
	Success      bool                 `json:"success"`
	Created      bool                 `json:"created"`
	CanRenew     bool                 `json:"can_renew"`
	Message      string               `json:"message,omitempty"`
	Subscription *domain.Subscription `json:"subscription"`
}

// Enroll handles POST /subscription/create
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	result, err := h.service.Enroll(r.Context(), admin)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
		h.logger.Info("Trial granted", zap.String("admin_id", admin.ID))
	}
	httputil.RespondJSON(w, h.logger, status, EnrollResponse{
		Success:      true,
		Created:      result.Created,
		CanRenew:     result.CanRenew,
		Message:      result.Message,
		Subscription: result.Subscription,
	})
}

// Cancel handles POST /subscription/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	sub, err := h.service.Cancel(r.Context(), admin.ID)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "Subscription cancelled",
		"subscription": sub,
	})
}

// AccessResponse is the body of GET /subscription/access
type AccessResponse struct {
	HasAccess     bool                      `json:"has_access"`
	Status        domain.SubscriptionStatus `json:"status,omitempty"`
	DaysRemaining int                       `json:"days_remaining"`
	Message       string                    `json:"message,omitempty"`
}

// Access handles GET /subscription/access
func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	view, err := h.service.Access(r.Context(), admin.ID)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, AccessResponse{
		HasAccess:     view.HasAccess,
		Status:        view.Status,
		DaysRemaining: view.DaysRemaining,
		Message:       view.Message,
	})
}

// InitiatePaymentRequest is the body of POST /payment/initiate
type InitiatePaymentRequest struct {
	PaymentType domain.PaymentType `json:"payment_type"`
	Amount      *decimal.Decimal   `json:"amount"`
	Currency    string             `json:"currency"`
}

// InitiatePaymentResponse carries the signed form the browser posts to the gateway
type InitiatePaymentResponse struct {
	Success        bool                      `json:"success"`
	TransactionRef string                    `json:"transaction_id"`
	Amount         decimal.Decimal           `json:"amount"`
	Currency       string                    `json:"currency"`
	PaymentType    domain.PaymentType        `json:"payment_type"`
	Sandbox        bool                      `json:"sandbox"`
	Status         domain.SubscriptionStatus `json:"subscription_status"`
	Form           *domainports.PaymentForm  `json:"form"`
}

// InitiatePayment handles POST /payment/initiate
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	var req InitiatePaymentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	if req.Amount == nil {
		httputil.RespondError(w, h.logger, domain.NewValidationError("amount", "amount is required"))
		return
	}

	initiation, err := h.service.RequestPayment(r.Context(), ports.PaymentRequest{
		Admin:    admin,
		Type:     req.PaymentType,
		Amount:   *req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, h.logger, http.StatusCreated, InitiatePaymentResponse{
		Success:        true,
		TransactionRef: initiation.TransactionRef,
		Amount:         initiation.Amount,
		Currency:       initiation.Currency,
		PaymentType:    initiation.PaymentType,
		Sandbox:        initiation.Sandbox,
		Status:         initiation.Status,
		Form:           initiation.Form,
	})
}

// VerifyPaymentRequest is the body of POST /payment/verify. Data is the
// base64 callback payload when the frontend forwards it.
type VerifyPaymentRequest struct {
	TransactionRef string `json:"transaction_id"`
	Data           string `json:"data,omitempty"`
}

// ConfirmResponse reports the recorded outcome of an attempt
type ConfirmResponse struct {
	Success        bool                      `json:"success"`
	TransactionRef string                    `json:"transaction_id"`
	Outcome        domain.PaymentOutcome     `json:"outcome"`
	AlreadyDone    bool                      `json:"already_processed"`
	Code           string                    `json:"code,omitempty"`
	Message        string                    `json:"message,omitempty"`
	GatewayRefID   string                    `json:"gateway_ref_id,omitempty"`
	Status         domain.SubscriptionStatus `json:"subscription_status,omitempty"`
	Subscription   *domain.Subscription      `json:"subscription,omitempty"`
}

// NewConfirmResponse builds the response body for a recorded outcome
func NewConfirmResponse(result *ports.ConfirmResult) ConfirmResponse {
	resp := ConfirmResponse{
		Success:        result.Outcome == domain.PaymentOutcomeSucceeded,
		TransactionRef: result.TransactionRef,
		Outcome:        result.Outcome,
		AlreadyDone:    result.Duplicate,
		Code:           result.Code,
		Message:        result.Message,
		GatewayRefID:   result.GatewayRefID,
		Subscription:   result.Subscription,
	}
	if result.Subscription != nil {
		resp.Status = result.Subscription.Status
	}
	return resp
}

// VerifyPayment handles POST /payment/verify
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	var req VerifyPaymentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	verify := ports.VerifyPaymentRequest{TransactionRef: req.TransactionRef, AdminID: admin.ID}
	if req.Data != "" {
		cb, err := decodeCallback(req.Data)
		if err != nil {
			httputil.RespondError(w, h.logger, err)
			return
		}
		verify.Callback = cb
	}

	result, err := h.service.VerifyPayment(r.Context(), verify)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, NewConfirmResponse(result))
}

// PaymentHistory handles GET /payment/history
func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	attempts, err := h.service.PaymentHistory(r.Context(), admin.ID, limit)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"payments": emptyIfNil(attempts),
		"count":    len(attempts),
	})
}

// BillingHistory handles GET /billing/history
func (h *Handler) BillingHistory(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	records, err := h.service.BillingHistory(r.Context(), admin.ID, limit)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"records": emptyIfNil(records),
		"count":   len(records),
	})
}

// LookupPayment handles GET /payment/lookup?transaction_id=
func (h *Handler) LookupPayment(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	attempt, err := h.service.LookupPayment(r.Context(), admin.ID, r.URL.Query().Get("transaction_id"))
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, attempt)
}

// CreateRefundRequestBody is the body of POST /refund-requests
type CreateRefundRequestBody struct {
	BillingRecordID string `json:"billing_record_id"`
	Reason          string `json:"reason"`
}

// CreateRefundRequest handles POST /refund-requests
func (h *Handler) CreateRefundRequest(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	var body CreateRefundRequestBody
	if err := httputil.DecodeJSON(w, r, &body); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	recordID, err := uuid.Parse(body.BillingRecordID)
	if err != nil {
		httputil.RespondError(w, h.logger, domain.NewValidationError("billing_record_id", "billing_record_id must be a UUID"))
		return
	}

	req, err := h.service.CreateRefundRequest(r.Context(), ports.RefundRequestInput{
		AdminID:         admin.ID,
		BillingRecordID: recordID,
		Reason:          body.Reason,
	})
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusCreated, req)
}

// ListRefundRequests handles GET /refund-requests
func (h *Handler) ListRefundRequests(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	reqs, err := h.service.ListRefundRequests(r.Context(), admin.ID)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"refund_requests": emptyIfNil(reqs),
	})
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) (domain.Admin, bool) {
	admin, ok := auth.AdminFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, h.logger, domain.ErrAuthMissing)
	}
	return admin, ok
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func decodeCallback(data string) (*domainports.CallbackData, error) {
	cb, err := esewa.DecodeDataParam(data)
	if err != nil {
		return nil, domain.NewValidationError("data", "callback data could not be decoded")
	}
	return cb, nil
}
