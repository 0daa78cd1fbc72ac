package cron

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/resilience"
)

// SweepHandler handles cron job endpoints for the reconciliation sweep
type SweepHandler struct {
	sweeper    ports.Sweeper
	logger     *zap.Logger
	cronSecret string // Secret token for authenticating cron requests
	timeouts   *resilience.TimeoutConfig
}

// NewSweepHandler creates a new sweep cron handler
func NewSweepHandler(
	sweeper ports.Sweeper,
	logger *zap.Logger,
	cronSecret string,
	timeouts *resilience.TimeoutConfig,
) *SweepHandler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &SweepHandler{
		sweeper:    sweeper,
		logger:     logger,
		cronSecret: cronSecret,
		timeouts:   timeouts,
	}
}

// SweepRequest represents the optional request body for a sweep
type SweepRequest struct {
	OlderThanMinutes *int `json:"older_than_minutes"` // Optional: defaults to the payment grace window
	DryRun           bool `json:"dry_run"`
	SkipReminders    bool `json:"skip_reminders"`
}

// SweepResponse represents the response from a sweep
type SweepResponse struct {
	Success     bool               `json:"success"`
	Report      *ports.SweepReport `json:"report,omitempty"`
	Error       string             `json:"error,omitempty"`
	ProcessedAt string             `json:"processed_at"`
}

// Sweep handles the POST /cron/sweep endpoint
func (h *SweepHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Sweep cron job triggered",
		zap.String("method", r.Method),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SweepRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if r.URL.Query().Get("dry_run") == "true" {
		req.DryRun = true
	}

	opts := ports.SweepOptions{DryRun: req.DryRun, SkipReminders: req.SkipReminders}
	if req.OlderThanMinutes != nil {
		if *req.OlderThanMinutes < 1 || *req.OlderThanMinutes > 7*24*60 {
			h.respondError(w, http.StatusBadRequest, "older_than_minutes must be between 1 and 10080")
			return
		}
		opts.OlderThan = time.Duration(*req.OlderThanMinutes) * time.Minute
	}

	// The sweep outlives a disconnecting scheduler but not the configured timeout
	ctx, cancel := h.timeouts.SweepContext(context.WithoutCancel(r.Context()))
	defer cancel()

	report, err := h.sweeper.Run(ctx, opts)
	resp := SweepResponse{
		Success:     err == nil && report != nil && len(report.Errors) == 0,
		Report:      report,
		ProcessedAt: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		h.logger.Error("Sweep failed", zap.Error(err))
		resp.Error = "sweep did not complete"
	}

	status := http.StatusOK
	switch {
	case err != nil:
		status = http.StatusInternalServerError
	case !resp.Success:
		status = http.StatusPartialContent // 206 indicates partial success
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// authenticateRequest verifies the cron request is authorized
func (h *SweepHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}

	if secretEqual(r.Header.Get("X-Cron-Secret"), h.cronSecret) {
		return true
	}

	if secretEqual(r.Header.Get("Authorization"), "Bearer "+h.cronSecret) {
		return true
	}

	// Query parameter (less secure, for development only)
	if secretEqual(r.URL.Query().Get("secret"), h.cronSecret) {
		h.logger.Warn("Using query parameter authentication (insecure)",
			zap.String("remote_addr", r.RemoteAddr),
		)
		return true
	}

	return false
}

func secretEqual(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// respondError sends an error response
func (h *SweepHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := map[string]interface{}{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// HealthCheck handles GET /cron/health for monitoring
func (h *SweepHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Register mounts the cron routes on mux
func (h *SweepHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /cron/sweep", h.Sweep)
	mux.HandleFunc("GET /cron/health", h.HealthCheck)
}
