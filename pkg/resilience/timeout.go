package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the application's timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	HTTP Handler (30s)
//	  ↓
//	Gateway verification (10s)
//	  ↓
//	Database lock wait (5s, SET LOCAL lock_timeout)
//
// The reconciliation sweep runs under its own, longer budget.
type TimeoutConfig struct {
	HTTPHandler time.Duration // Overall request timeout (default: 30s)
	Sweep       time.Duration // Reconciliation sweep budget (default: 5 minutes)

	GatewayVerify    time.Duration // One gateway verification call (default: 10s)
	NotifierDelivery time.Duration // One notification publish including retries (default: 10s)
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:      30 * time.Second,
		Sweep:            5 * time.Minute,
		GatewayVerify:    10 * time.Second,
		NotifierDelivery: 10 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:      5 * time.Second,
		Sweep:            10 * time.Second,
		GatewayVerify:    1 * time.Second,
		NotifierDelivery: 1 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// SweepContext creates a context with timeout for the reconciliation sweep
func (tc *TimeoutConfig) SweepContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Sweep)
}

// NotifierContext detaches from parent's cancellation so a notification outlives the request that caused it
func (tc *TimeoutConfig) NotifierContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), tc.NotifierDelivery)
}
