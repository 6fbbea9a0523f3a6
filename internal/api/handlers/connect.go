package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api/middleware"
	"github.com/nicholaswood-whop/trading-view-whop/internal/db"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
	"github.com/rs/zerolog"
)

// ConnectStore defines the interface for connection persistence operations.
type ConnectStore interface {
	UpsertConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error)
	DeleteConnectionByCompanyID(ctx context.Context, companyID string) error
	UpsertIndicator(ctx context.Context, indicator *models.Indicator) (*models.Indicator, error)
}

// ConnectHandler handles seller session connect/disconnect endpoints.
type ConnectHandler struct {
	store     ConnectStore
	tvFactory TradingViewFactory
	logger    zerolog.Logger
}

// NewConnectHandler creates a new ConnectHandler.
func NewConnectHandler(store ConnectStore, tvFactory TradingViewFactory, logger zerolog.Logger) *ConnectHandler {
	return &ConnectHandler{
		store:     store,
		tvFactory: tvFactory,
		logger:    logger.With().Str("component", "connect_handler").Logger(),
	}
}

// RegisterRoutes registers connect routes on the given router group.
func (h *ConnectHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/seller/connect", h.Connect)
	r.DELETE("/seller/connect", h.Disconnect)
}

// ConnectRequest carries the seller's host session cookies.
type ConnectRequest struct {
	SessionID     string `json:"sessionId" binding:"required"`
	SessionIDSign string `json:"sessionIdSign"`
}

// Connect verifies the session cookies, stores the connection, and imports
// the indicator catalog on a best-effort basis.
// POST /api/seller/connect
func (h *ConnectHandler) Connect(c *gin.Context) {
	companyID := middleware.ResolveCompanyID(c)
	if companyID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no company in token"})
		return
	}

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	client, err := h.tvFactory(req.SessionID, req.SessionIDSign)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build host client")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reach indicator host"})
		return
	}

	if err := client.VerifyConnection(c.Request.Context()); err != nil {
		h.logger.Warn().Err(err).Str("company_id", companyID).Msg("session verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not verify the session, check your cookies"})
		return
	}

	conn, err := h.store.UpsertConnection(c.Request.Context(), models.NewConnection(companyID, req.SessionID, req.SessionIDSign))
	if err != nil {
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("failed to store connection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store connection"})
		return
	}

	imported, warning := h.importCatalog(c.Request.Context(), client, conn)

	response := gin.H{
		"connected":          true,
		"indicatorsImported": imported,
	}
	if warning != "" {
		response["warning"] = warning
	}
	c.JSON(http.StatusOK, response)
}

// importCatalog pulls whatever the host reports and upserts it. Failures
// downgrade to a warning: the connection itself is already stored.
func (h *ConnectHandler) importCatalog(ctx context.Context, client TradingViewClient, conn *models.Connection) (int, string) {
	indicators, _ := client.ListIndicators(ctx)
	if len(indicators) == 0 {
		return 0, "no indicators could be discovered, add them manually"
	}

	imported := 0
	for _, ind := range indicators {
		record := models.NewIndicator(conn.ID, conn.CompanyID, ind.ID, ind.Name)
		if ind.ScriptID != "" {
			record.ScriptID = &ind.ScriptID
		}
		if _, err := h.store.UpsertIndicator(ctx, record); err != nil {
			h.logger.Error().Err(err).
				Str("tradingview_id", ind.ID).
				Msg("failed to store imported indicator")
			continue
		}
		imported++
	}

	if imported == 0 {
		return 0, "indicator import failed, add them manually"
	}
	return imported, ""
}

// Disconnect removes the stored connection and, via cascade, its catalog.
// DELETE /api/seller/connect
func (h *ConnectHandler) Disconnect(c *gin.Context) {
	companyID := middleware.ResolveCompanyID(c)
	if companyID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no company in token"})
		return
	}

	if err := h.store.DeleteConnectionByCompanyID(c.Request.Context(), companyID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not connected"})
			return
		}
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("failed to delete connection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"disconnected": true})
}
