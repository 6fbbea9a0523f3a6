package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nicholaswood-whop/trading-view-whop/internal/config"
	"github.com/rs/zerolog"
)

// ConfigVerifyHandler reports whether the deployment is fully configured.
// It names missing variables but never echoes values.
type ConfigVerifyHandler struct {
	cfg    *config.ServerConfig
	logger zerolog.Logger
}

// NewConfigVerifyHandler creates a new ConfigVerifyHandler.
func NewConfigVerifyHandler(cfg *config.ServerConfig, logger zerolog.Logger) *ConfigVerifyHandler {
	return &ConfigVerifyHandler{
		cfg:    cfg,
		logger: logger.With().Str("component", "config_verify_handler").Logger(),
	}
}

// RegisterRoutes registers the config verification route.
func (h *ConfigVerifyHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/config/verify", h.Verify)
}

// Verify returns the configuration completeness report.
// GET /api/config/verify
func (h *ConfigVerifyHandler) Verify(c *gin.Context) {
	valid, missing := h.cfg.Verify()
	if missing == nil {
		missing = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":       valid,
		"missing":     missing,
		"environment": h.cfg.Environment,
	})
}
