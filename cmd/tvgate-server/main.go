// Package main is the entrypoint for the access gateway server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api/handlers"
	"github.com/nicholaswood-whop/trading-view-whop/internal/config"
	"github.com/nicholaswood-whop/trading-view-whop/internal/db"
	"github.com/nicholaswood-whop/trading-view-whop/internal/httpclient"
	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/tradingview"
	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/whop"
	"github.com/nicholaswood-whop/trading-view-whop/internal/maintenance"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
	"github.com/nicholaswood-whop/trading-view-whop/internal/reconcile"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("starting access gateway server")

	// Load configuration
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		return 1
	}
	if valid, missing := cfg.Verify(); !valid {
		logger.Warn().Strs("missing", missing).Msg("configuration incomplete, some operations will fail")
	}

	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	if cfg.DatabaseURL == "" {
		logger.Error().Msg("DATABASE_URL environment variable is required")
		return 1
	}

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return 1
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to run database migrations")
		return 1
	}

	// Commerce platform client
	whopClient, err := whop.NewClient(whop.ClientConfig{
		BaseURL: cfg.WhopAPIBase,
		APIKey:  cfg.WhopAPIKey,
		AppID:   cfg.WhopAppID,
		Timeout: cfg.OutboundTimeout,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create whop client")
		return 1
	}
	if cfg.Proxy.HasProxy() {
		proxied, err := httpclient.NewWithConfig(&cfg)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create proxy-aware http client")
			return 1
		}
		whopClient.SetHTTPClient(proxied)
	}

	// Indicator host clients are built per seller session. Each gets its
	// own http.Client because the host client owns the redirect policy.
	tvFactory := func(sessionID, sessionIDSign string) (handlers.TradingViewClient, error) {
		hc, err := httpclient.NewWithConfig(&cfg)
		if err != nil {
			return nil, err
		}
		return tradingview.NewClient(tradingview.ClientConfig{
			BaseURL:       cfg.TradingViewBaseURL,
			SessionID:     sessionID,
			SessionIDSign: sessionIDSign,
			HTTPClient:    hc,
		}, logger)
	}

	reconciler := reconcile.New(database, whopClient, func(conn *models.Connection) (reconcile.AccessClient, error) {
		return tvFactory(conn.SessionID, conn.SessionIDSign)
	}, logger)

	// Webhook event retention
	retention := maintenance.NewRetentionScheduler(database, cfg.WebhookRetentionDays, logger)
	if err := retention.Start(); err != nil {
		logger.Error().Err(err).Msg("failed to start retention scheduler")
		return 1
	}
	defer func() { <-retention.Stop().Done() }()

	router, err := api.NewRouter(&cfg, api.Deps{
		DB:         database,
		WhopClient: whopClient,
		TVFactory:  tvFactory,
		Reconciler: reconciler,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build router")
		return 1
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server failed")
		return 1
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return 1
	}

	logger.Info().Msg("server stopped")
	return 0
}
