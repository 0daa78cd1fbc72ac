package security

import (
	"strings"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// redactedKeys are field names whose values never reach the log output
var redactedKeys = map[string]struct{}{
	"password":           {},
	"secret":             {},
	"secret_key":         {},
	"esewa_secret_key":   {},
	"code":               {},
	"otp":                {},
	"token":              {},
	"verification_token": {},
	"signature":          {},
	"authorization":      {},
}

const redacted = "[REDACTED]"

// ZapLoggerAdapter adapts zap.Logger to the services' Logger port and masks secret-bearing fields
type ZapLoggerAdapter struct {
	logger *zap.Logger
}

// NewZapLogger creates a new ZapLoggerAdapter
func NewZapLogger(logger *zap.Logger) *ZapLoggerAdapter {
	return &ZapLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

// Info logs an info message
func (z *ZapLoggerAdapter) Info(msg string, fields ...ports.Field) {
	z.logger.Info(msg, convertFields(fields)...)
}

// Error logs an error message
func (z *ZapLoggerAdapter) Error(msg string, fields ...ports.Field) {
	z.logger.Error(msg, convertFields(fields)...)
}

// Warn logs a warning message
func (z *ZapLoggerAdapter) Warn(msg string, fields ...ports.Field) {
	z.logger.Warn(msg, convertFields(fields)...)
}

// Debug logs a debug message
func (z *ZapLoggerAdapter) Debug(msg string, fields ...ports.Field) {
	z.logger.Debug(msg, convertFields(fields)...)
}

// IsRedacted reports whether values logged under key are masked
func IsRedacted(key string) bool {
	_, ok := redactedKeys[strings.ToLower(key)]
	return ok
}

func convertFields(fields []ports.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch v := f.Value.(type) {
		case error:
			zapFields[i] = zap.NamedError(f.Key, v)
		default:
			if IsRedacted(f.Key) {
				zapFields[i] = zap.String(f.Key, redacted)
				continue
			}
			zapFields[i] = zap.Any(f.Key, v)
		}
	}
	return zapFields
}

var _ ports.Logger = (*ZapLoggerAdapter)(nil)
