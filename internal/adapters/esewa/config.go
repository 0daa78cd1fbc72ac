package esewa

import (
	"time"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// Sandbox merchant published by the gateway for integration testing. Used only when a
// tenant has no active, decryptable credentials of their own.
const (
	SandboxProductCode = "EPAYTEST"
	SandboxSecretKey   = "8gBm/:&EnhH.1/q"
)

// Gateway endpoints per environment
const (
	TestFormURL         = "https://rc-epay.esewa.com.np/api/epay/main/v2/form"
	TestVerifyURL       = "https://rc-epay.esewa.com.np/api/epay/transrec"
	ProductionFormURL   = "https://epay.esewa.com.np/api/epay/main/v2/form"
	ProductionVerifyURL = "https://epay.esewa.com.np/api/epay/transrec"
)

// Endpoints are the form-submission and server-to-server verification URLs of one environment
type Endpoints struct {
	FormURL   string
	VerifyURL string
}

// GatewayConfig configures the gateway adapter. It is passed in at construction time;
// nothing is read from ambient global state.
type GatewayConfig struct {
	Test       Endpoints
	Production Endpoints

	// Browser redirect targets after payment
	SuccessURL string
	FailureURL string

	// Timeout bounds a single verification call
	Timeout time.Duration

	// Sandbox is the fallback merchant used when a tenant has no credentials
	Sandbox domain.GatewayCredentials

	// AutoApproveSandbox approves sandbox payments without calling the gateway.
	// Test mode only; never enable in production.
	AutoApproveSandbox bool

	// Circuit breaker around verification calls
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
}

// DefaultGatewayConfig returns a config with the published sandbox merchant and endpoints.
func DefaultGatewayConfig(successURL, failureURL string) GatewayConfig {
	return GatewayConfig{
		Test:       Endpoints{FormURL: TestFormURL, VerifyURL: TestVerifyURL},
		Production: Endpoints{FormURL: ProductionFormURL, VerifyURL: ProductionVerifyURL},
		SuccessURL: successURL,
		FailureURL: failureURL,
		Timeout:    10 * time.Second,
		Sandbox: domain.GatewayCredentials{
			ProductCode: SandboxProductCode,
			SecretKey:   SandboxSecretKey,
			Environment: domain.EnvironmentTest,
			Sandbox:     true,
		},
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,
	}
}

// EndpointsFor returns the URLs of the given environment
func (c GatewayConfig) EndpointsFor(env domain.Environment) Endpoints {
	if env == domain.EnvironmentProduction {
		return c.Production
	}
	return c.Test
}
