package ports

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// HTTPClient performs the gateway's server-to-server verification call
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PaymentFormRequest is the input for building a signed payment-initiation form
type PaymentFormRequest struct {
	Amount         decimal.Decimal
	TransactionRef string
}

// PaymentForm is the redirect payload handed to the browser
type PaymentForm struct {
	ActionURL string            `json:"action_url"`
	Fields    map[string]string `json:"fields"`
}

// CallbackData is what the gateway sent back on the success or failure redirect.
// Every field may be empty; only TransactionRef is needed to resolve the attempt.
type CallbackData struct {
	TransactionRef   string
	GatewayRefID     string
	Status           string
	TotalAmount      string
	ProductCode      string
	SignedFieldNames string
	Signature        string
	// Fields holds every signed value by name, for response signature verification
	Fields map[string]string
}

// IsSigned reports whether the callback carried a response signature
func (c *CallbackData) IsSigned() bool {
	return c != nil && c.Signature != "" && c.SignedFieldNames != ""
}

// VerifyOutcome is the tri-state result of a gateway verification
type VerifyOutcome string

const (
	VerifySuccess       VerifyOutcome = "success"
	VerifyFailure       VerifyOutcome = "failure"
	VerifyIndeterminate VerifyOutcome = "indeterminate"
)

// VerifyRequest identifies the attempt being verified. Amount comes from the stored attempt.
type VerifyRequest struct {
	TransactionRef string
	Amount         decimal.Decimal
	Callback       *CallbackData
}

// VerifyResult is the gateway's answer
type VerifyResult struct {
	Outcome      VerifyOutcome
	Code         string
	Message      string
	GatewayRefID string
	Raw          map[string]interface{}
	// Err is set for indeterminate results and signature mismatches
	Err error
}

// GatewayAdapter builds signed payment requests and verifies their outcome
type GatewayAdapter interface {
	// BuildPaymentForm signs a payment-initiation form. It performs no I/O.
	BuildPaymentForm(creds domain.GatewayCredentials, req PaymentFormRequest) (*PaymentForm, error)

	// Verify checks the outcome of a payment with the gateway
	Verify(ctx context.Context, creds domain.GatewayCredentials, req VerifyRequest) VerifyResult

	// SandboxCredentials returns the configured fallback test credentials
	SandboxCredentials() domain.GatewayCredentials
}

// CredentialResolver supplies decrypted gateway credentials for a tenant.
// It falls back to sandbox credentials when none are configured or decryptable.
type CredentialResolver interface {
	ResolveGatewayCredentials(ctx context.Context, adminID string) (domain.GatewayCredentials, error)
}
