package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api/middleware"
	"github.com/nicholaswood-whop/trading-view-whop/internal/db"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
	"github.com/rs/zerolog"
)

// IndicatorStore defines the interface for indicator persistence operations.
type IndicatorStore interface {
	GetConnectionByCompanyID(ctx context.Context, companyID string) (*models.Connection, error)
	GetIndicatorsByCompanyID(ctx context.Context, companyID string) ([]*models.Indicator, error)
	GetIndicatorByID(ctx context.Context, id uuid.UUID) (*models.Indicator, error)
	UpsertIndicator(ctx context.Context, indicator *models.Indicator) (*models.Indicator, error)
	AttachIndicatorToExperience(ctx context.Context, id uuid.UUID, experienceID string) (*models.Indicator, error)
}

// IndicatorsHandler handles the seller indicator catalog endpoints.
type IndicatorsHandler struct {
	store     IndicatorStore
	tvFactory TradingViewFactory
	logger    zerolog.Logger
}

// NewIndicatorsHandler creates a new IndicatorsHandler.
func NewIndicatorsHandler(store IndicatorStore, tvFactory TradingViewFactory, logger zerolog.Logger) *IndicatorsHandler {
	return &IndicatorsHandler{
		store:     store,
		tvFactory: tvFactory,
		logger:    logger.With().Str("component", "indicators_handler").Logger(),
	}
}

// RegisterRoutes registers indicator routes on the given router group.
func (h *IndicatorsHandler) RegisterRoutes(r *gin.RouterGroup) {
	indicators := r.Group("/seller/indicators")
	{
		indicators.GET("", h.List)
		indicators.POST("/import", h.Import)
		indicators.POST("/manual", h.AddManual)
		indicators.POST("/:id/attach", h.Attach)
	}
}

// List returns the company's indicator catalog.
// GET /api/seller/indicators
func (h *IndicatorsHandler) List(c *gin.Context) {
	companyID, ok := h.requireConnection(c)
	if !ok {
		return
	}

	indicators, err := h.store.GetIndicatorsByCompanyID(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("failed to list indicators")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list indicators"})
		return
	}
	if indicators == nil {
		indicators = []*models.Indicator{}
	}

	c.JSON(http.StatusOK, gin.H{"indicators": indicators})
}

// Import re-probes the host catalog and upserts everything found. The probe
// trail is returned so operators can see which endpoint answered.
// POST /api/seller/indicators/import
func (h *IndicatorsHandler) Import(c *gin.Context) {
	companyID := middleware.ResolveCompanyID(c)
	if companyID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no company in token"})
		return
	}

	conn, err := h.store.GetConnectionByCompanyID(c.Request.Context(), companyID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not connected"})
			return
		}
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("failed to load connection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load connection"})
		return
	}

	client, err := h.tvFactory(conn.SessionID, conn.SessionIDSign)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build host client")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reach indicator host"})
		return
	}

	discovered, probes := client.ListIndicators(c.Request.Context())

	imported := 0
	for _, ind := range discovered {
		record := models.NewIndicator(conn.ID, companyID, ind.ID, ind.Name)
		if ind.ScriptID != "" {
			record.ScriptID = &ind.ScriptID
		}
		if _, err := h.store.UpsertIndicator(c.Request.Context(), record); err != nil {
			h.logger.Error().Err(err).
				Str("tradingview_id", ind.ID).
				Msg("failed to store imported indicator")
			continue
		}
		imported++
	}

	response := gin.H{
		"imported": imported,
		"probes":   probes,
	}
	if imported == 0 {
		response["warning"] = "no indicators could be discovered, add them manually"
	}
	c.JSON(http.StatusOK, response)
}

// ManualIndicatorRequest registers an indicator the probes could not find.
type ManualIndicatorRequest struct {
	TradingViewID string `json:"tradingViewId" binding:"required"`
	Name          string `json:"name" binding:"required"`
	ScriptID      string `json:"scriptId"`
}

// AddManual registers a single indicator by its host identifier. This is
// the fallback for catalogs the list probes cannot see.
// POST /api/seller/indicators/manual
func (h *IndicatorsHandler) AddManual(c *gin.Context) {
	companyID := middleware.ResolveCompanyID(c)
	if companyID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no company in token"})
		return
	}

	var req ManualIndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tradingViewId and name are required"})
		return
	}

	conn, err := h.store.GetConnectionByCompanyID(c.Request.Context(), companyID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not connected"})
			return
		}
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("failed to load connection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load connection"})
		return
	}

	record := models.NewIndicator(conn.ID, companyID, req.TradingViewID, req.Name)
	if req.ScriptID != "" {
		record.ScriptID = &req.ScriptID
	}

	indicator, err := h.store.UpsertIndicator(c.Request.Context(), record)
	if err != nil {
		h.logger.Error().Err(err).Str("tradingview_id", req.TradingViewID).Msg("failed to store indicator")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store indicator"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"indicator": indicator})
}

// AttachRequest binds an indicator to an experience.
type AttachRequest struct {
	ExperienceID string `json:"experienceId" binding:"required"`
}

// Attach links an indicator to the experience buyers will request it from.
// POST /api/seller/indicators/:id/attach
func (h *IndicatorsHandler) Attach(c *gin.Context) {
	companyID := middleware.ResolveCompanyID(c)
	if companyID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no company in token"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid indicator ID"})
		return
	}

	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "experienceId is required"})
		return
	}

	indicator, err := h.store.GetIndicatorByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "indicator not found"})
			return
		}
		h.logger.Error().Err(err).Str("indicator_id", id.String()).Msg("failed to load indicator")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load indicator"})
		return
	}

	// Indicators of other companies do not exist as far as this caller
	// is concerned.
	if indicator.CompanyID != companyID {
		c.JSON(http.StatusNotFound, gin.H{"error": "indicator not found"})
		return
	}

	attached, err := h.store.AttachIndicatorToExperience(c.Request.Context(), id, req.ExperienceID)
	if err != nil {
		h.logger.Error().Err(err).Str("indicator_id", id.String()).Msg("failed to attach indicator")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to attach indicator"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"indicator": attached})
}

// requireConnection resolves the caller's company and checks that a
// connection exists, writing the error response when it does not.
func (h *IndicatorsHandler) requireConnection(c *gin.Context) (string, bool) {
	companyID := middleware.ResolveCompanyID(c)
	if companyID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no company in token"})
		return "", false
	}

	if _, err := h.store.GetConnectionByCompanyID(c.Request.Context(), companyID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not connected"})
			return "", false
		}
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("failed to load connection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load connection"})
		return "", false
	}
	return companyID, true
}
