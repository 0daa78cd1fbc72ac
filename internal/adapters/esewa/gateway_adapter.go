package esewa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/observability"
)

const (
	maxResponseBytes   = 64 << 10
	maxSnapshotBodyLen = 2048
	breakerName        = "esewa-verify"
)

// verifyResponse is the raw reply of the verification endpoint
type verifyResponse struct {
	StatusCode int
	Body       []byte
}

// GatewayAdapter implements ports.GatewayAdapter for eSewa ePay v2
type GatewayAdapter struct {
	cfg        GatewayConfig
	httpClient ports.HTTPClient
	logger     ports.Logger
	breaker    *gobreaker.CircuitBreaker[*verifyResponse]
}

// NewGatewayAdapter creates a new gateway adapter with dependency injection
func NewGatewayAdapter(cfg GatewayConfig, httpClient ports.HTTPClient, logger ports.Logger) *GatewayAdapter {
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*verifyResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Gateway circuit breaker state changed",
				ports.String("breaker", name),
				ports.String("from", from.String()),
				ports.String("to", to.String()))
			observability.SetBreakerState(name, int(to))
		},
	})

	return &GatewayAdapter{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		breaker:    breaker,
	}
}

// SandboxCredentials returns the configured fallback test merchant
func (a *GatewayAdapter) SandboxCredentials() domain.GatewayCredentials {
	creds := a.cfg.Sandbox
	creds.Sandbox = true
	creds.Environment = domain.EnvironmentTest
	return creds
}

// FormatAmount renders an amount the way the gateway signs it: whole rupees, no decimals.
func FormatAmount(amount decimal.Decimal) string {
	return amount.Truncate(0).String()
}

// BuildPaymentForm signs a payment-initiation form. It performs no I/O.
func (a *GatewayAdapter) BuildPaymentForm(creds domain.GatewayCredentials, req ports.PaymentFormRequest) (*ports.PaymentForm, error) {
	if req.TransactionRef == "" {
		return nil, domain.NewValidationError("transaction_uuid", "transaction reference is required")
	}
	if !req.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}

	total := FormatAmount(req.Amount)
	signature, err := Sign(creds.SecretKey, PaymentMessage(total, req.TransactionRef, creds.ProductCode))
	if err != nil {
		return nil, fmt.Errorf("sign payment form: %w", err)
	}

	return &ports.PaymentForm{
		ActionURL: a.cfg.EndpointsFor(creds.Environment).FormURL,
		Fields: map[string]string{
			"amount":                  total,
			"tax_amount":              "0",
			"total_amount":            total,
			"transaction_uuid":        req.TransactionRef,
			"product_code":            creds.ProductCode,
			"product_service_charge":  "0",
			"product_delivery_charge": "0",
			"success_url":             a.cfg.SuccessURL,
			"failure_url":             a.cfg.FailureURL,
			"signed_field_names":      SignedFieldNames,
			"signature":               signature,
		},
	}, nil
}

// Verify checks the outcome of a payment with the gateway. Network trouble, timeouts and
// unparseable replies are indeterminate, never failure.
func (a *GatewayAdapter) Verify(ctx context.Context, creds domain.GatewayCredentials, req ports.VerifyRequest) ports.VerifyResult {
	start := time.Now()
	result := a.verify(ctx, creds, req)
	observability.RecordGatewayVerification(string(result.Outcome), string(creds.Environment), time.Since(start))

	a.logger.Info("Gateway verification completed",
		ports.String("transaction_ref", req.TransactionRef),
		ports.String("outcome", string(result.Outcome)),
		ports.String("response_code", result.Code),
		ports.Bool("sandbox", creds.Sandbox))
	return result
}

func (a *GatewayAdapter) verify(ctx context.Context, creds domain.GatewayCredentials, req ports.VerifyRequest) ports.VerifyResult {
	if cb := req.Callback; cb.IsSigned() {
		ok, err := VerifySignature(creds.SecretKey, SignedFieldsMessage(cb.SignedFieldNames, cb.Fields), cb.Signature)
		if err != nil {
			return indeterminate(ResponseCodeError, "response signature could not be checked", err)
		}
		if !ok {
			a.logger.Warn("Gateway callback signature mismatch",
				ports.String("transaction_ref", req.TransactionRef))
			return ports.VerifyResult{
				Outcome: ports.VerifyFailure,
				Code:    ResponseCodeFailed,
				Message: "callback signature mismatch",
				Raw:     map[string]interface{}{"signature_valid": false},
				Err:     domain.ErrSignatureMismatch,
			}
		}
	}

	if creds.Sandbox && a.cfg.AutoApproveSandbox {
		return ports.VerifyResult{
			Outcome: ports.VerifySuccess,
			Code:    ResponseCodeSuccess,
			Message: "sandbox payment auto-approved",
			Raw:     map[string]interface{}{"mode": "sandbox_auto_approve"},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := a.breaker.Execute(func() (*verifyResponse, error) {
		return a.callVerify(ctx, creds, req)
	})
	if err != nil {
		code := ResponseCodeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) {
			code = ResponseCodeTimeout
		}
		a.logger.Warn("Gateway verification unavailable",
			ports.String("transaction_ref", req.TransactionRef),
			ports.Err(err))
		return indeterminate(code, "gateway unavailable", domain.WrapError(
			domain.ErrorCodeGatewayUnavailable, domain.ErrGatewayUnavailable.Message, err))
	}

	return interpretResponse(resp)
}

// callVerify performs the server-to-server status check. Only transport failures and
// non-200 replies count against the breaker.
func (a *GatewayAdapter) callVerify(ctx context.Context, creds domain.GatewayCredentials, req ports.VerifyRequest) (*verifyResponse, error) {
	total := FormatAmount(req.Amount)
	signature, err := Sign(creds.SecretKey, PaymentMessage(total, req.TransactionRef, creds.ProductCode))
	if err != nil {
		return nil, fmt.Errorf("sign verification request: %w", err)
	}

	form := url.Values{}
	form.Set("total_amount", total)
	form.Set("transaction_uuid", req.TransactionRef)
	form.Set("product_code", creds.ProductCode)
	form.Set("signed_field_names", SignedFieldNames)
	form.Set("signature", signature)

	endpoint := a.cfg.EndpointsFor(creds.Environment).VerifyURL
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verification returned HTTP %d", resp.StatusCode)
	}
	return &verifyResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// interpretResponse maps the gateway reply onto the tri-state outcome. The endpoint answers
// either JSON with a status field or a short text/XML body containing Success or Failure.
func interpretResponse(resp *verifyResponse) ports.VerifyResult {
	body := strings.TrimSpace(string(resp.Body))
	raw := map[string]interface{}{
		"http_status": resp.StatusCode,
		"body":        truncate(body, maxSnapshotBodyLen),
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(resp.Body, &parsed); err == nil {
		raw["parsed"] = parsed
		status, _ := parsed["status"].(string)
		refID, _ := parsed["ref_id"].(string)
		switch strings.ToUpper(status) {
		case "COMPLETE", "SUCCESS":
			return ports.VerifyResult{Outcome: ports.VerifySuccess, Code: ResponseCodeSuccess,
				Message: "payment completed", GatewayRefID: refID, Raw: raw}
		case "NOT_FOUND", "CANCELED", "CANCELLED", "FULL_REFUND", "PARTIAL_REFUND", "FAILURE", "FAILED":
			return ports.VerifyResult{Outcome: ports.VerifyFailure, Code: ResponseCodeFailed,
				Message: "gateway reported status " + status, GatewayRefID: refID, Raw: raw}
		case "PENDING", "AMBIENT":
			result := indeterminate(ResponseCodeTimeout, "gateway reported status "+status, nil)
			result.Raw = raw
			return result
		}
		result := indeterminate(ResponseCodeError, "unrecognized gateway response", nil)
		result.Raw = raw
		return result
	}

	switch token := responseToken(body); {
	case strings.EqualFold(token, "failure"):
		return ports.VerifyResult{Outcome: ports.VerifyFailure, Code: ResponseCodeFailed,
			Message: "gateway reported failure", Raw: raw}
	case token == "Success":
		return ports.VerifyResult{Outcome: ports.VerifySuccess, Code: ResponseCodeSuccess,
			Message: "payment completed", Raw: raw}
	}

	result := indeterminate(ResponseCodeError, "unrecognized gateway response", nil)
	result.Raw = raw
	return result
}

// responseToken returns the <response_code> element of a text reply, or the whole
// trimmed body when there is none. Only exact tokens are classified.
func responseToken(body string) string {
	const open, closing = "<response_code>", "</response_code>"
	start := strings.Index(body, open)
	if start < 0 {
		return body
	}
	rest := body[start+len(open):]
	end := strings.Index(rest, closing)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

func indeterminate(code, message string, err error) ports.VerifyResult {
	return ports.VerifyResult{
		Outcome: ports.VerifyIndeterminate,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ ports.GatewayAdapter = (*GatewayAdapter)(nil)
