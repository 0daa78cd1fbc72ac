package ports

import (
	"context"
	"time"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// Notifier delivers a notification to the outbound mail collaborator
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// EventSink receives transition events after the transaction that produced them commits.
// Publishing is fire-and-forget: failures are logged, never returned to the caller.
type EventSink interface {
	Publish(ctx context.Context, events ...domain.TransitionEvent)
}

// ReminderDeduper remembers which reminders were already sent.
type ReminderDeduper interface {
	// MarkSent records key and reports whether this call was the first one within ttl
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
