// Package bootstrap builds the service graph shared by the API server and billingctl.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/database"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/esewa"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/notify"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/postgres"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/secrets"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/config"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/reconciliation"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/subscription"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/vault"
	pkghttp "github.com/prajwal851851/QRCODE-PROJECT/pkg/http"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/observability"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/resilience"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/security"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/shutdown"
)

// NewLogger builds the process logger: JSON in production, console otherwise
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// Components is the wired service graph
type Components struct {
	Config *config.Config
	Logger *zap.Logger

	Database      *database.PostgreSQLAdapter
	Executor      *postgres.DBExecutor
	Subscriptions *postgres.SubscriptionRepository
	Ledger        *postgres.LedgerRepository
	Credentials   *postgres.CredentialRepository

	Gateway    *esewa.GatewayAdapter
	Vault      *vault.Service
	Billing    *subscription.Service
	Sweeper    *reconciliation.Sweeper
	Dispatcher *notify.Dispatcher
	Timeouts   *resilience.TimeoutConfig

	// Redis is nil when reminders are deduplicated in process
	Redis *redis.Client

	closers []namedFunc
}

type namedFunc struct {
	name string
	fn   shutdown.Func
}

func (c *Components) onClose(name string, fn shutdown.Func) {
	c.closers = append(c.closers, namedFunc{name: name, fn: fn})
}

// New connects to every backing service and builds the services on top.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString())
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	c.Database, err = database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	c.onClose("database", func(context.Context) error {
		c.Database.Close()
		return nil
	})

	pool := c.Database.Pool()
	c.Executor = postgres.NewDBExecutor(pool, cfg.Database.LockTimeout)
	c.Subscriptions = postgres.NewSubscriptionRepository(pool)
	c.Ledger = postgres.NewLedgerRepository(pool)
	c.Credentials = postgres.NewCredentialRepository(pool)

	store, closeStore, err := OpenSecretStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.onClose("secret_store", func(context.Context) error { return closeStore() })

	cipher, err := secrets.LoadCipher(ctx, store, secrets.KeyConfig{
		PrimaryPath:   cfg.Encryption.PrimaryPath,
		PreviousPaths: cfg.Encryption.PreviousPaths,
		Production:    cfg.IsProduction(),
	}, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := c.openNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	timeouts := resilience.DefaultTimeoutConfig()
	timeouts.NotifierDelivery = cfg.Notifier.Timeout
	timeouts.GatewayVerify = cfg.Gateway.Timeout
	timeouts.Sweep = cfg.Cron.SweepTimeout
	c.Timeouts = timeouts
	c.Dispatcher = notify.NewDispatcher(notifier, cfg.Notifier.OpsRecipient, timeouts, logger)
	c.onClose("notification_dispatcher", c.Dispatcher.Shutdown)

	deduper, err := c.openDeduper(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	svcLogger := security.NewZapLogger(logger)

	gatewayCfg := esewa.DefaultGatewayConfig(cfg.Gateway.SuccessURL, cfg.Gateway.FailureURL)
	gatewayCfg.Timeout = cfg.Gateway.Timeout
	gatewayCfg.AutoApproveSandbox = cfg.Gateway.AutoApproveSandbox
	gatewayCfg.BreakerFailureThreshold = cfg.Gateway.BreakerFailures
	gatewayCfg.BreakerOpenTimeout = cfg.Gateway.BreakerOpenTimeout
	httpClient := pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), cfg.Gateway.Timeout)
	c.Gateway = esewa.NewGatewayAdapter(gatewayCfg, httpClient, svcLogger)

	c.Vault = vault.NewService(
		c.Executor,
		c.Credentials,
		cipher,
		postgres.NewPasswordVerifier(pool),
		notifier,
		c.Gateway.SandboxCredentials(),
		nil,
		svcLogger,
	)

	c.Billing = subscription.NewService(
		c.Executor,
		c.Subscriptions,
		c.Ledger,
		c.Gateway,
		c.Vault,
		c.Dispatcher,
		nil,
		svcLogger,
	)

	c.Sweeper = reconciliation.NewSweeper(
		c.Executor,
		c.Subscriptions,
		c.Ledger,
		c.Billing,
		c.Dispatcher,
		deduper,
		nil,
		svcLogger,
	)

	logger.Info("Service graph ready",
		zap.String("environment", cfg.Environment),
		zap.String("key_source", cfg.Encryption.Source),
		zap.Bool("rabbitmq", cfg.Notifier.RabbitMQURL != ""),
		zap.Bool("redis", c.Redis != nil),
		zap.Bool("auto_approve_sandbox", cfg.Gateway.AutoApproveSandbox),
	)
	return c, nil
}

func (c *Components) openNotifier(cfg *config.Config, logger *zap.Logger) (ports.Notifier, error) {
	if cfg.Notifier.RabbitMQURL == "" {
		logger.Warn("RABBITMQ_URL not set, notifications are only logged")
		return notify.NewLogNotifier(logger), nil
	}
	n, err := notify.NewRabbitMQNotifier(notify.RabbitMQConfig{
		URL:         cfg.Notifier.RabbitMQURL,
		Exchange:    cfg.Notifier.Exchange,
		MaxAttempts: cfg.Notifier.MaxAttempts,
	}, logger)
	if err != nil {
		return nil, err
	}
	c.onClose("rabbitmq", func(context.Context) error { return n.Close() })
	return n, nil
}

func (c *Components) openDeduper(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.ReminderDeduper, error) {
	if cfg.Redis.URL == "" {
		logger.Info("REDIS_URL not set, reminder dedup is process-local")
		return notify.NewMemoryDeduper(), nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	c.onClose("redis", func(context.Context) error { return client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	c.Redis = client
	return notify.NewRedisDeduper(client, cfg.Redis.KeyPrefix), nil
}

// HealthChecks returns the dependencies reported on /health
func (c *Components) HealthChecks() map[string]observability.Pinger {
	checks := map[string]observability.Pinger{"database": c.Database}
	if c.Redis != nil {
		checks["redis"] = observability.PingFunc(func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		})
	}
	return checks
}

// RegisterShutdown hands every opened resource to m, in opening order
func (c *Components) RegisterShutdown(m *shutdown.Manager) {
	for _, closer := range c.closers {
		m.Register(closer.name, closer.fn)
	}
	c.closers = nil
}

// Close releases everything in reverse opening order
func (c *Components) Close(ctx context.Context) error {
	m := shutdown.NewManager(c.Logger, 30*time.Second)
	c.RegisterShutdown(m)
	return m.Shutdown(ctx)
}
