// Package credentials serves the gateway credential vault endpoints.
package credentials

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/auth"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/handlers/httputil"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
)

// Handler serves /api/credentials. Every route expects AdminAuth and RequestOrigin to have run.
type Handler struct {
	service ports.CredentialService
	logger  *zap.Logger
}

// NewHandler creates the credentials handler
func NewHandler(service ports.CredentialService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the vault routes on mux under prefix
func (h *Handler) Register(mux *http.ServeMux, prefix string, wrap func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"GET " + prefix + "/{$}":            h.Get,
		"POST " + prefix + "/{$}":           h.Store,
		"GET " + prefix + "/status":         h.Status,
		"POST " + prefix + "/reveal/request": h.RequestReveal,
		"POST " + prefix + "/reveal/verify":  h.VerifyCode,
		"POST " + prefix + "/reveal":         h.Reveal,
		"POST " + prefix + "/disable":        h.Disable,
		"POST " + prefix + "/enable":         h.Enable,
		"GET " + prefix + "/audit-logs":      h.AuditLog,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, wrap(fn))
	}
}

// StoreRequest is the body of POST /
type StoreRequest struct {
	ProductCode string             `json:"esewa_product_code"`
	SecretKey   string             `json:"esewa_secret_key"`
	Environment domain.Environment `json:"environment"`
	DisplayName string             `json:"display_name"`
}

// MaskedResponse is the only credential view outside a reveal
type MaskedResponse struct {
	ProductCode string             `json:"esewa_product_code"`
	SecretKey   string             `json:"esewa_secret_key"`
	Environment domain.Environment `json:"environment"`
	IsActive    bool               `json:"is_active"`
	DisplayName string             `json:"display_name,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func maskedResponse(m *ports.MaskedCredential) MaskedResponse {
	return MaskedResponse{
		ProductCode: m.ProductCode,
		SecretKey:   m.SecretKey,
		Environment: m.Environment,
		IsActive:    m.IsActive,
		DisplayName: m.DisplayName,
		UpdatedAt:   m.UpdatedAt,
	}
}

// Store handles POST /
func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req StoreRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	masked, err := h.service.Store(r.Context(), actor, ports.StoreCredentialRequest{
		ProductCode: req.ProductCode,
		SecretKey:   req.SecretKey,
		Environment: req.Environment,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "eSewa credentials saved",
		"credentials": maskedResponse(masked),
	})
}

// Get handles GET /
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	masked, err := h.service.Get(r.Context(), actor)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, maskedResponse(masked))
}

// Status handles GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	st, err := h.service.Status(r.Context(), actor.ID)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"configured":  st.Configured,
		"is_active":   st.IsActive,
		"environment": st.Environment,
		"updated_at":  st.UpdatedAt,
	})
}

type passwordRequest struct {
	Password string `json:"password"`
}

// RequestReveal handles POST /reveal/request
func (h *Handler) RequestReveal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	challenge, err := h.service.RequestReveal(r.Context(), actor, req.Password)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Verification code sent",
		"sent_to":    challenge.SentTo,
		"expires_at": challenge.ExpiresAt,
	})
}

// VerifyCode handles POST /reveal/verify
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	grant, err := h.service.VerifyCode(r.Context(), actor, req.Code)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":            true,
		"verification_token": grant.Token,
		"expires_at":         grant.ExpiresAt,
	})
}

// Reveal handles POST /reveal
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"verification_token"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	revealed, err := h.service.Reveal(r.Context(), actor, req.Token)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	if !revealed.Available {
		httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
			"success":   false,
			"available": false,
			"message":   "Stored credentials are unavailable. Please save them again.",
		})
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":            true,
		"available":          true,
		"esewa_product_code": revealed.ProductCode,
		"esewa_secret_key":   revealed.SecretKey,
		"environment":        revealed.Environment,
	})
}

// Disable handles POST /disable
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

// Enable handles POST /enable
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, active bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}

	toggle, message := h.service.Disable, "eSewa credentials disabled"
	if active {
		toggle, message = h.service.Enable, "eSewa credentials enabled"
	}
	if err := toggle(r.Context(), actor, req.Password); err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":   true,
		"is_active": active,
		"message":   message,
	})
}

// AuditLog handles GET /audit-logs
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	entries, err := h.service.AuditLog(r.Context(), actor.ID, limit)
	if err != nil {
		httputil.RespondError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*domain.AuditLogEntry{}
	}
	httputil.RespondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, h.logger, domain.ErrAuthMissing)
	}
	return actor, ok
}
