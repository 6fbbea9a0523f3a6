// Package api provides the HTTP API for the access gateway server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api/handlers"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api/middleware"
	"github.com/nicholaswood-whop/trading-view-whop/internal/config"
	"github.com/nicholaswood-whop/trading-view-whop/internal/db"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// Deps carries the handler dependencies the router wires together.
type Deps struct {
	DB         *db.DB
	WhopClient handlers.WhopClient
	TVFactory  handlers.TradingViewFactory
	Reconciler handlers.EventReconciler
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg *config.ServerConfig, deps Deps, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Health and metrics endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(deps.DB, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public API routes: the webhook receiver authenticates nothing, the
	// config probe reports only variable names.
	public := r.Engine.Group("/api")
	handlers.NewConfigVerifyHandler(cfg, logger).RegisterRoutes(public)
	webhooksHandler := handlers.NewWebhooksHandler(deps.Reconciler, deps.DB, logger)
	webhooksHandler.RegisterRoutes(public)

	// Identity-scoped API routes
	authed := r.Engine.Group("/api")
	authed.Use(middleware.RequireIdentity())
	webhooksHandler.RegisterAuthedRoutes(authed)
	handlers.NewConnectHandler(deps.DB, deps.TVFactory, logger).RegisterRoutes(authed)
	handlers.NewIndicatorsHandler(deps.DB, deps.TVFactory, logger).RegisterRoutes(authed)
	handlers.NewAccessHandler(deps.DB, deps.WhopClient, deps.TVFactory, logger).RegisterRoutes(authed)
	handlers.NewSetupHandler(deps.DB, deps.WhopClient, logger).RegisterRoutes(authed)

	return r, nil
}
