package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements ports.Notifier
func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.logger.Info("Notification",
		zap.String("template", msg.Template),
		zap.String("recipient", msg.Recipient),
	)
	return nil
}

var _ ports.Notifier = (*LogNotifier)(nil)
