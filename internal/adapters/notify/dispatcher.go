package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/observability"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/resilience"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/shutdown"
)

// Dispatcher is the EventSink handed to services. Each notification is delivered
// in its own tracked goroutine so callers never wait on the broker.
type Dispatcher struct {
	notifier     ports.Notifier
	opsRecipient string
	timeouts     *resilience.TimeoutConfig
	tracker      *shutdown.InFlightTracker
	logger       *zap.Logger
}

// NewDispatcher creates a dispatcher delivering through notifier
func NewDispatcher(notifier ports.Notifier, opsRecipient string, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Dispatcher {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Dispatcher{
		notifier:     notifier,
		opsRecipient: opsRecipient,
		timeouts:     timeouts,
		tracker:      shutdown.NewInFlightTracker("notifications", logger),
		logger:       logger,
	}
}

// Publish implements ports.EventSink
func (d *Dispatcher) Publish(ctx context.Context, events ...domain.TransitionEvent) {
	for _, e := range events {
		if e.IsZero() {
			continue
		}
		observability.RecordTransition(string(e.Type), string(e.From), string(e.To))
		for _, n := range Render(e, d.opsRecipient) {
			d.deliver(ctx, n)
		}
	}
}

// Send delivers a notification that is not tied to a transition, such as a verification code
func (d *Dispatcher) Send(ctx context.Context, n domain.Notification) {
	d.deliver(ctx, n)
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) {
	started := d.tracker.Go(func() {
		sendCtx, cancel := d.timeouts.NotifierContext(ctx)
		defer cancel()

		if err := d.notifier.Notify(sendCtx, n); err != nil {
			observability.RecordNotification(n.Template, "failed")
			d.logger.Warn("Notification delivery failed",
				zap.String("template", n.Template),
				zap.Error(err),
			)
			return
		}
		observability.RecordNotification(n.Template, "sent")
	})
	if !started {
		observability.RecordNotification(n.Template, "dropped")
		d.logger.Warn("Notification dropped during shutdown", zap.String("template", n.Template))
	}
}

// Wait blocks until every started delivery has finished
func (d *Dispatcher) Wait() {
	d.tracker.Wait()
}

// Shutdown stops accepting notifications and waits for pending deliveries
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	return d.tracker.Shutdown(ctx)
}

var _ ports.EventSink = (*Dispatcher)(nil)
