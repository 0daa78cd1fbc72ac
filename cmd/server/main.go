package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/auth"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/bootstrap"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/config"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/handlers/billing"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/handlers/callback"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/handlers/credentials"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/handlers/cron"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/middleware"
	pkgmiddleware "github.com/prajwal851851/QRCODE-PROJECT/pkg/middleware"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/observability"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/shutdown"
)

const version = "0.1.0"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := bootstrap.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting billing service",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Billing service stopped with error", zap.Error(err))
	}
	logger.Info("Servers stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	deps, err := bootstrap.New(startCtx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	shutdownMgr := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	deps.RegisterShutdown(shutdownMgr)

	tokens, err := auth.NewJWTManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		if cfg.IsProduction() {
			return err
		}
		logger.Warn("JWT_SECRET not set, using an ephemeral development secret")
		tokens, err = auth.NewJWTManager([]byte(fmt.Sprintf("dev-%d", time.Now().UnixNano())), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
	}
	if cfg.Cron.Secret == "" {
		logger.Warn("CRON_SECRET not set, /cron/sweep rejects every request")
	}

	// Callbacks are public; limit them per client
	rateLimiter := pkgmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, func(r *http.Request) string {
		return middleware.ClientIP(r, cfg.Server.TrustProxy)
	})
	shutdownMgr.RegisterNoErr("rate_limiter", rateLimiter.Shutdown)

	handler := newRouter(cfg, deps, tokens, rateLimiter, logger)

	apiServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	metricsServer := observability.NewMetricsServer(
		fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		observability.NewHealthChecker(deps.HealthChecks()),
	)
	shutdownMgr.RegisterHTTPServer("metrics_server", metricsServer)
	shutdownMgr.RegisterHTTPServer("api_server", apiServer)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	deps.Database.StartPoolMonitoring(monitorCtx, time.Minute)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP API server listening", zap.String("address", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Metrics server listening", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down servers...")
		return shutdownMgr.Shutdown(context.Background())
	})

	return g.Wait()
}

// newRouter mounts every route and wraps the mux in the shared middleware
func newRouter(
	cfg *config.Config,
	deps *bootstrap.Components,
	tokens *auth.JWTManager,
	rateLimiter *pkgmiddleware.RateLimiter,
	logger *zap.Logger,
) http.Handler {
	mux := http.NewServeMux()

	adminAuth := middleware.NewAdminAuth(tokens, logger)
	protect := func(h http.Handler) http.Handler {
		return middleware.Chain(h, middleware.RequestOrigin(cfg.Server.TrustProxy), adminAuth.Middleware)
	}

	billing.NewHandler(deps.Billing, deps.Timeouts, logger).Register(mux, "/api/billing", protect)
	credentials.NewHandler(deps.Vault, logger).Register(mux, "/api/credentials", protect)

	callbacks := callback.NewHandler(deps.Billing, logger, cfg.Server.FrontendURL)
	mux.HandleFunc("GET /api/billing/payment/success", rateLimiter.HTTPHandlerFunc(callbacks.Success))
	mux.HandleFunc("GET /api/billing/payment/failure", rateLimiter.HTTPHandlerFunc(callbacks.Failure))

	cron.NewSweepHandler(deps.Sweeper, logger, cfg.Cron.Secret, deps.Timeouts).Register(mux)

	headers := middleware.NewSecurityHeaders(cfg.Environment == config.EnvDevelopment)
	return middleware.Chain(mux,
		pkgmiddleware.Recovery(logger),
		observability.HTTPMiddleware,
		headers.Middleware,
		pkgmiddleware.GzipHandler(logger, "/api/billing/payment/success", "/api/billing/payment/failure"),
	)
}
