package middleware

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/auth"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/handlers/httputil"
)

// TokenValidator resolves a bearer token to an admin
type TokenValidator interface {
	ValidateToken(token string) (domain.Admin, error)
}

// AdminAuth resolves the bearer token into the admin on the request context
type AdminAuth struct {
	tokens TokenValidator
	logger *zap.Logger
}

// NewAdminAuth creates the admin authentication middleware
func NewAdminAuth(tokens TokenValidator, logger *zap.Logger) *AdminAuth {
	return &AdminAuth{tokens: tokens, logger: logger}
}

// Middleware rejects requests without a valid admin token
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.RespondError(w, a.logger, domain.ErrAuthMissing)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			httputil.RespondError(w, a.logger, domain.ErrAuthInvalid)
			return
		}

		admin, err := a.tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			a.logger.Warn("Rejected admin token",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			httputil.RespondError(w, a.logger, domain.ErrAuthInvalid)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithAdmin(r.Context(), admin)))
	})
}

// RequestOrigin records the client address and user agent for audit entries
func RequestOrigin(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithRequestOrigin(r.Context(), ClientIP(r, trustProxy), r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the caller address. Forwarding headers are honored only behind a trusted proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Chain applies middlewares so the first one listed runs first
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
