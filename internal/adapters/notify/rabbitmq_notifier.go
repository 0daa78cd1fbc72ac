package notify

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/encoding"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/resilience"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

// DefaultExchange is the topic exchange the mail collaborator consumes from
const DefaultExchange = "qrmenu.billing.notifications"

// Publisher is the subset of *amqp.Channel the notifier uses
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQConfig configures the broker notifier
type RabbitMQConfig struct {
	URL         string
	Exchange    string
	MaxAttempts int
}

// RabbitMQNotifier publishes notifications as persistent JSON messages routed by template
type RabbitMQNotifier struct {
	conn        *amqp.Connection
	channel     Publisher
	exchange    string
	maxAttempts int
	backoff     resilience.BackoffStrategy
	logger      *zap.Logger
	mu          sync.Mutex
}

// NewRabbitMQNotifier dials the broker and declares the exchange
func NewRabbitMQNotifier(cfg RabbitMQConfig, logger *zap.Logger) (*RabbitMQNotifier, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("RabbitMQ notifier connected", zap.String("exchange", cfg.Exchange))

	n := NewRabbitMQNotifierWithChannel(ch, cfg, logger)
	n.conn = conn
	return n, nil
}

// NewRabbitMQNotifierWithChannel builds a notifier on an existing channel
func NewRabbitMQNotifierWithChannel(ch Publisher, cfg RabbitMQConfig, logger *zap.Logger) *RabbitMQNotifier {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &RabbitMQNotifier{
		channel:     ch,
		exchange:    cfg.Exchange,
		maxAttempts: cfg.MaxAttempts,
		backoff:     resilience.NotifierBackoff(),
		logger:      logger,
	}
}

// RoutingKey is "notification.<template>"
func RoutingKey(template string) string {
	return "notification." + template
}

// Notify implements ports.Notifier, retrying transient publish failures with backoff
func (n *RabbitMQNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	body, err := encoding.EncodeJSON(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	key := RoutingKey(msg.Template)

	return resilience.Retry(ctx, n.backoff, n.maxAttempts, func(ctx context.Context) error {
		n.mu.Lock()
		defer n.mu.Unlock()

		err := n.channel.PublishWithContext(ctx, n.exchange, key, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    timeutil.Now(),
			Body:         body,
		})
		if err != nil {
			n.logger.Warn("Failed to publish notification",
				zap.String("routing_key", key),
				zap.Error(err),
			)
			return err
		}
		n.logger.Debug("Notification published",
			zap.String("routing_key", key),
			zap.Int("size", len(body)),
		)
		return nil
	})
}

// Close closes the channel and connection
func (n *RabbitMQNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.channel != nil {
		if err := n.channel.Close(); err != nil {
			n.logger.Warn("error closing channel", zap.Error(err))
		}
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

var _ ports.Notifier = (*RabbitMQNotifier)(nil)
