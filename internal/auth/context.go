package auth

import (
	"context"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// Context keys for authentication data
type contextKey string

const (
	AdminKey     contextKey = "admin"
	ClientIPKey  contextKey = "client_ip"
	UserAgentKey contextKey = "user_agent"
)

// WithAdmin stores the authenticated admin in the context
func WithAdmin(ctx context.Context, admin domain.Admin) context.Context {
	return context.WithValue(ctx, AdminKey, admin)
}

// AdminFromContext returns the authenticated admin, if any
func AdminFromContext(ctx context.Context) (domain.Admin, bool) {
	admin, ok := ctx.Value(AdminKey).(domain.Admin)
	return admin, ok && admin.ID != ""
}

// WithRequestOrigin stores the caller's address and user agent
func WithRequestOrigin(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ClientIPKey, clientIP)
	return context.WithValue(ctx, UserAgentKey, userAgent)
}

// ClientIP returns the caller address recorded by the middleware
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPKey).(string)
	return ip
}

// ActorFromContext builds the audit actor for the authenticated admin
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	admin, ok := AdminFromContext(ctx)
	if !ok {
		return domain.Actor{}, false
	}
	ua, _ := ctx.Value(UserAgentKey).(string)
	return domain.Actor{Admin: admin, IPAddress: ClientIP(ctx), UserAgent: ua}, true
}
