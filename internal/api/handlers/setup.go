package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api/middleware"
	"github.com/nicholaswood-whop/trading-view-whop/internal/db"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
	"github.com/rs/zerolog"
)

// SetupStore defines the interface for setup status persistence operations.
type SetupStore interface {
	GetConnectionByCompanyID(ctx context.Context, companyID string) (*models.Connection, error)
	GetIndicatorsByCompanyID(ctx context.Context, companyID string) ([]*models.Indicator, error)
	GetUnattachedIndicators(ctx context.Context, connectionID uuid.UUID) ([]*models.Indicator, error)
	GetIndicatorByExperience(ctx context.Context, experienceID, companyID string) (*models.Indicator, error)
}

// SetupHandler reports how far a seller has come in wiring an experience.
type SetupHandler struct {
	store      SetupStore
	whopClient WhopClient
	logger     zerolog.Logger
}

// NewSetupHandler creates a new SetupHandler.
func NewSetupHandler(store SetupStore, whopClient WhopClient, logger zerolog.Logger) *SetupHandler {
	return &SetupHandler{
		store:      store,
		whopClient: whopClient,
		logger:     logger.With().Str("component", "setup_handler").Logger(),
	}
}

// RegisterRoutes registers setup routes on the given router group.
func (h *SetupHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/experiences/:experienceId/setup", h.Status)
}

// SetupResponse is the setup status for one experience. The logs field is
// an ordered trail of every resolution step for operator troubleshooting.
type SetupResponse struct {
	Connected      bool              `json:"connected"`
	IndicatorCount int               `json:"indicatorCount"`
	Attached       bool              `json:"attached"`
	Indicator      *models.Indicator `json:"indicator,omitempty"`
	Logs           []string          `json:"logs"`
}

// Status reports the connect/import/attach progress for an experience.
// GET /api/experiences/:experienceId/setup
func (h *SetupHandler) Status(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok || identity.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	experienceID := c.Param("experienceId")
	logs := []string{fmt.Sprintf("resolving experience %s", experienceID)}

	experience, err := h.whopClient.GetExperience(c.Request.Context(), experienceID)
	if err != nil {
		h.logger.Warn().Err(err).Str("experience_id", experienceID).Msg("experience lookup failed")
		c.JSON(http.StatusNotFound, gin.H{"error": "experience not found"})
		return
	}

	companyID := experience.CompanyID
	if companyID == "" {
		companyID = middleware.ResolveCompanyID(c)
		logs = append(logs, "experience carries no company, falling back to token company")
	}
	logs = append(logs, fmt.Sprintf("experience belongs to company %s", companyID))

	if !h.whopClient.IsUserOwnerOrAdmin(c.Request.Context(), identity.UserID, companyID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only company owners and admins can view setup"})
		return
	}
	logs = append(logs, fmt.Sprintf("user %s verified as owner/admin", identity.UserID))

	response := &SetupResponse{Logs: logs}

	conn, err := h.store.GetConnectionByCompanyID(c.Request.Context(), companyID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Error().Err(err).Str("company_id", companyID).Msg("failed to load connection")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load setup state"})
			return
		}
		response.Logs = append(response.Logs, "no host connection found, seller must connect first")
		c.JSON(http.StatusOK, response)
		return
	}
	response.Connected = true
	response.Logs = append(response.Logs, "host connection present")

	indicators, err := h.store.GetIndicatorsByCompanyID(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("failed to list indicators")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load setup state"})
		return
	}
	response.IndicatorCount = len(indicators)
	response.Logs = append(response.Logs, fmt.Sprintf("%d indicators in catalog", len(indicators)))

	if unattached, err := h.store.GetUnattachedIndicators(c.Request.Context(), conn.ID); err == nil && len(unattached) > 0 {
		response.Logs = append(response.Logs, fmt.Sprintf("%d indicators not yet attached to any experience", len(unattached)))
	}

	indicator, err := h.store.GetIndicatorByExperience(c.Request.Context(), experienceID, companyID)
	switch {
	case err == nil:
		response.Attached = true
		response.Indicator = indicator
		response.Logs = append(response.Logs, fmt.Sprintf("indicator %q attached to this experience", indicator.Name))
	case errors.Is(err, db.ErrNotFound):
		response.Logs = append(response.Logs, "no indicator attached to this experience yet")
	default:
		h.logger.Error().Err(err).Str("experience_id", experienceID).Msg("failed to resolve attachment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load setup state"})
		return
	}

	c.JSON(http.StatusOK, response)
}
