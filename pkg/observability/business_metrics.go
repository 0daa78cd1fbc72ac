package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Subscription lifecycle metrics
	subscriptionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_subscription_transitions_total",
		Help: "Subscription state transitions by event",
	}, []string{
		"event", // activated, extended, pending_payment_entered, expired, cancelled...
		"from",
		"to",
	})

	paymentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payment_requests_total",
		Help: "Payment initiation requests by type and guard result",
	}, []string{
		"payment_type", // subscription, trial_activation, renewal
		"result",       // accepted or the guard rejection code
	})

	paymentConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payment_confirmations_total",
		Help: "Payment confirmations by outcome",
	}, []string{
		"outcome", // succeeded, failed, duplicate, indeterminate
	})

	subscriptionRevenueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_subscription_revenue_total",
		Help: "Confirmed subscription revenue in major currency units",
	}, []string{
		"currency",
	})

	// Gateway metrics
	gatewayVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_gateway_verifications_total",
		Help: "Gateway verification calls by outcome",
	}, []string{
		"outcome", // success, failure, indeterminate
		"environment",
	})

	gatewayVerificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "billing_gateway_verification_duration_seconds",
		Help: "Duration of server-to-server verification calls",
		// Buckets: 50ms to 15s (verification timeout is a few seconds)
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{
		"environment",
	})

	gatewayBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "billing_gateway_circuit_breaker_state",
		Help: "Gateway circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{
		"name",
	})

	// Sweep metrics
	sweepActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_sweep_actions_total",
		Help: "Rows changed by the reconciliation sweep",
	}, []string{
		"pass",   // payment_due, stale_attempts, expired, reminders
		"dry_run",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_sweep_duration_seconds",
		Help:    "Duration of a full reconciliation sweep",
		Buckets: prometheus.DefBuckets,
	})

	// Vault metrics
	credentialAccessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_credential_access_total",
		Help: "Credential vault accesses by audit action",
	}, []string{
		"action", // created, updated, viewed, accessed, enabled, disabled
		"result", // ok, denied, unavailable
	})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_notifications_total",
		Help: "Notifications handed to the delivery collaborator",
	}, []string{
		"template",
		"status", // sent, failed
	})
)

// RecordTransition records a subscription state transition
func RecordTransition(event, from, to string) {
	subscriptionTransitionsTotal.WithLabelValues(event, from, to).Inc()
}

// RecordPaymentRequest records a payment initiation and its guard result
func RecordPaymentRequest(paymentType, result string) {
	paymentRequestsTotal.WithLabelValues(paymentType, result).Inc()
}

// RecordPaymentConfirmation records a confirmation outcome, and revenue on success
func RecordPaymentConfirmation(outcome string, amount float64, currency string) {
	paymentConfirmationsTotal.WithLabelValues(outcome).Inc()
	if outcome == "succeeded" && amount > 0 {
		subscriptionRevenueTotal.WithLabelValues(currency).Add(amount)
	}
}

// RecordGatewayVerification records a verification outcome and its latency
func RecordGatewayVerification(outcome, environment string, elapsed time.Duration) {
	gatewayVerificationsTotal.WithLabelValues(outcome, environment).Inc()
	gatewayVerificationDuration.WithLabelValues(environment).Observe(elapsed.Seconds())
}

// SetBreakerState exports the breaker state as a gauge
func SetBreakerState(name string, state int) {
	gatewayBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordSweepActions records rows changed by a sweep pass
func RecordSweepActions(pass string, count int64, dryRun bool) {
	dry := "false"
	if dryRun {
		dry = "true"
	}
	sweepActionsTotal.WithLabelValues(pass, dry).Add(float64(count))
}

// ObserveSweepDuration records the duration of a sweep run
func ObserveSweepDuration(elapsed time.Duration) {
	sweepDuration.Observe(elapsed.Seconds())
}

// RecordCredentialAccess records a vault access
func RecordCredentialAccess(action, result string) {
	credentialAccessTotal.WithLabelValues(action, result).Inc()
}

// RecordNotification records a notification hand-off
func RecordNotification(template, status string) {
	notificationsTotal.WithLabelValues(template, status).Inc()
}
