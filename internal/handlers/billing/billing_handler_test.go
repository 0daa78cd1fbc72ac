package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/auth"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	domainports "github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/handlers/httputil"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/middleware"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/testutil/mocks"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/resilience"
)

var testAdmin = domain.Admin{ID: "admin-1", Email: "owner@restaurant.test"}

type fixture struct {
	svc    *mocks.MockBillingService
	mux    *http.ServeMux
	tokens *auth.JWTManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewJWTManager([]byte("handler-test-secret"), "billing", time.Hour)
	require.NoError(t, err)

	f := &fixture{svc: &mocks.MockBillingService{}, mux: http.NewServeMux(), tokens: tokens}
	adminAuth := middleware.NewAdminAuth(tokens, zap.NewNop())
	NewHandler(f.svc, resilience.TestTimeoutConfig(), zap.NewNop()).Register(f.mux, "/api/billing", adminAuth.Middleware)
	t.Cleanup(func() { f.svc.AssertExpectations(t) })
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := f.tokens.GenerateToken(testAdmin)
	require.NoError(t, err)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestRoutes_RequireToken(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing", "", string(domain.ErrorCodeAuthMissing)},
		{"not bearer", "Basic abc", string(domain.ErrorCodeAuthInvalid)},
		{"bad token", "Bearer nope", string(domain.ErrorCodeAuthInvalid)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/billing/subscription/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestRoutes_MethodPatterns(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/billing/payment/initiate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatus_NoSubscription(t *testing.T) {
	f := newFixture(t)
	f.svc.On("Status", mock.Anything, "admin-1").Return(&ports.StatusView{}, nil)

	rec := f.do(t, http.MethodGet, "/api/billing/subscription/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["has_subscription"])
	assert.NotContains(t, body, "monthly_fee")
}

func TestEnroll_CreatedAndExisting(t *testing.T) {
	t.Run("trial granted", func(t *testing.T) {
		f := newFixture(t)
		sub := domain.NewTrialSubscription(testAdmin, time.Now())
		f.svc.On("Enroll", mock.Anything, testAdmin).
			Return(&ports.EnrollResult{Subscription: sub, Created: true, Message: "Free trial activated."}, nil)

		rec := f.do(t, http.MethodPost, "/api/billing/subscription/create", "")

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, true, body["created"])
	})

	t.Run("trial already running", func(t *testing.T) {
		f := newFixture(t)
		f.svc.On("Enroll", mock.Anything, testAdmin).
			Return(nil, domain.ErrTrialAlreadyActive.WithDetail("days_remaining", 2))

		rec := f.do(t, http.MethodPost, "/api/billing/subscription/create", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, string(domain.ErrorCodeTrialAlreadyActive), body["code"])
		assert.Equal(t, float64(2), body["details"].(map[string]interface{})["days_remaining"])
	})
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t)
	fee := decimal.NewFromInt(999)
	f.svc.On("RequestPayment", mock.Anything, ports.PaymentRequest{
		Admin:    testAdmin,
		Type:     domain.PaymentTypeRenewal,
		Amount:   fee,
		Currency: "NPR",
	}).Return(&ports.PaymentInitiation{
		TransactionRef: "SUB_1_2_3",
		Amount:         fee,
		Currency:       "NPR",
		PaymentType:    domain.PaymentTypeRenewal,
		Status:         domain.SubscriptionStatusActive,
		Form:           &domainports.PaymentForm{ActionURL: "https://gateway.test/form", Fields: map[string]string{"transaction_uuid": "SUB_1_2_3"}},
	}, nil)

	rec := f.do(t, http.MethodPost, "/api/billing/payment/initiate",
		`{"payment_type":"renewal","amount":"999","currency":"NPR"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "SUB_1_2_3", body["transaction_id"])
	assert.Equal(t, "https://gateway.test/form", body["form"].(map[string]interface{})["action_url"])
}

func TestInitiatePayment_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"missing amount", `{"payment_type":"subscription"}`, nil, http.StatusBadRequest},
		{"malformed json", `{"amount":`, nil, http.StatusBadRequest},
		{"unknown field", `{"amount":"999","admin_id":"someone-else"}`, nil, http.StatusBadRequest},
		{"guard", `{"amount":"999"}`, domain.ErrTrialStillActive, http.StatusBadRequest},
		{"in flight", `{"amount":"999"}`, domain.ErrPaymentProcessing, http.StatusConflict},
		{"lock contention", `{"amount":"999"}`, domain.ErrConcurrentModification, http.StatusConflict},
		{"internal", `{"amount":"999"}`, errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.err != nil {
				f.svc.On("RequestPayment", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			rec := f.do(t, http.MethodPost, "/api/billing/payment/initiate", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestVerifyPayment_ScopedToCaller(t *testing.T) {
	f := newFixture(t)
	sub := domain.NewTrialSubscription(testAdmin, time.Now())
	f.svc.On("VerifyPayment", mock.Anything, ports.VerifyPaymentRequest{
		TransactionRef: "SUB_a_b_c",
		AdminID:        "admin-1",
	}).Return(&ports.ConfirmResult{
		TransactionRef: "SUB_a_b_c",
		Outcome:        domain.PaymentOutcomeSucceeded,
		Code:           "000",
		Subscription:   sub,
	}, nil)

	rec := f.do(t, http.MethodPost, "/api/billing/payment/verify", `{"transaction_id":"SUB_a_b_c"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "succeeded", body["outcome"])
}

func TestVerifyPayment_GatewayUnavailableIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.svc.On("VerifyPayment", mock.Anything, mock.Anything).
		Return(nil, domain.WrapError(domain.ErrorCodeGatewayUnavailable, domain.ErrGatewayUnavailable.Message, context.DeadlineExceeded))

	rec := f.do(t, http.MethodPost, "/api/billing/payment/verify", `{"transaction_id":"SUB_a_b_c"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestVerifyPayment_BadCallbackData(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/billing/payment/verify", `{"transaction_id":"x","data":"%%%"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistories(t *testing.T) {
	f := newFixture(t)
	f.svc.On("PaymentHistory", mock.Anything, "admin-1", 10).Return([]*domain.PaymentAttempt(nil), nil)
	f.svc.On("BillingHistory", mock.Anything, "admin-1", 0).Return([]*domain.BillingRecord{{ID: uuid.New()}}, nil)

	rec := f.do(t, http.MethodGet, "/api/billing/payment/history?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"payments":[],"count":0}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/billing/billing/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = f.do(t, http.MethodGet, "/api/billing/payment/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupPayment_NotFound(t *testing.T) {
	f := newFixture(t)
	f.svc.On("LookupPayment", mock.Anything, "admin-1", "SUB_x").Return(nil, domain.ErrPaymentNotFound)

	rec := f.do(t, http.MethodGet, "/api/billing/payment/lookup?transaction_id=SUB_x", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefundRequests(t *testing.T) {
	f := newFixture(t)
	recordID := uuid.New()
	f.svc.On("CreateRefundRequest", mock.Anything, ports.RefundRequestInput{
		AdminID:         "admin-1",
		BillingRecordID: recordID,
		Reason:          "charged twice",
	}).Return(&domain.RefundRequest{ID: uuid.New(), BillingRecordID: recordID, Status: domain.RefundStatusPending}, nil)
	f.svc.On("ListRefundRequests", mock.Anything, "admin-1").Return([]*domain.RefundRequest(nil), nil)

	rec := f.do(t, http.MethodPost, "/api/billing/refund-requests",
		`{"billing_record_id":"`+recordID.String()+`","reason":"charged twice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", decode(t, rec)["status"])

	rec = f.do(t, http.MethodPost, "/api/billing/refund-requests", `{"billing_record_id":"nope","reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/billing/refund-requests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"refund_requests":[]}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, httputil.StatusFor(domain.ErrorCodeForbidden))
	assert.Equal(t, http.StatusConflict, httputil.StatusFor(domain.ErrorCodeDuplicateTransaction))
	assert.Equal(t, http.StatusInternalServerError, httputil.StatusFor(domain.ErrorCodeDatabaseError))
}

func TestRoutes_CarryHandlerDeadline(t *testing.T) {
	f := newFixture(t)
	budget := resilience.TestTimeoutConfig().HTTPHandler
	f.svc.On("Status", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= budget
	}), "admin-1").Return(&ports.StatusView{}, nil)

	rec := f.do(t, http.MethodGet, "/api/billing/subscription/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
