package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api/middleware"
	"github.com/nicholaswood-whop/trading-view-whop/internal/db"
	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/whop"
	"github.com/nicholaswood-whop/trading-view-whop/internal/metrics"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
	"github.com/rs/zerolog"
)

// AccessStore defines the interface for buyer access persistence operations.
type AccessStore interface {
	GetIndicatorByExperience(ctx context.Context, experienceID, companyID string) (*models.Indicator, error)
	GetConnectionByCompanyID(ctx context.Context, companyID string) (*models.Connection, error)
	GetAccessGrant(ctx context.Context, userID string, indicatorID uuid.UUID) (*models.AccessGrant, error)
	UpsertAccessGrant(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error)
}

// AccessHandler handles the buyer access request endpoint.
type AccessHandler struct {
	store      AccessStore
	whopClient WhopClient
	tvFactory  TradingViewFactory
	logger     zerolog.Logger
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(store AccessStore, whopClient WhopClient, tvFactory TradingViewFactory, logger zerolog.Logger) *AccessHandler {
	return &AccessHandler{
		store:      store,
		whopClient: whopClient,
		tvFactory:  tvFactory,
		logger:     logger.With().Str("component", "access_handler").Logger(),
	}
}

// RegisterRoutes registers buyer access routes on the given router group.
func (h *AccessHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/buyer/access", h.RequestAccess)
}

// AccessRequest is a buyer's request for indicator access.
type AccessRequest struct {
	TradingViewUsername string `json:"tradingViewUsername" binding:"required"`
	ExperienceID        string `json:"experienceId" binding:"required"`
	MembershipID        string `json:"membershipId"`
}

// RequestAccess grants the buyer's host username access to the indicator
// attached to an experience.
// POST /api/buyer/access
func (h *AccessHandler) RequestAccess(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok || identity.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tradingViewUsername and experienceId are required"})
		return
	}

	companyID := middleware.ResolveCompanyID(c)

	indicator, err := h.store.GetIndicatorByExperience(c.Request.Context(), req.ExperienceID, companyID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// Owners get a hint that setup is incomplete on their side.
			isOwner := false
			if companyID != "" {
				isOwner = h.whopClient.IsUserOwnerOrAdmin(c.Request.Context(), identity.UserID, companyID)
			}
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "no indicator is attached to this experience",
				"isOwner": isOwner,
			})
			return
		}
		h.logger.Error().Err(err).Str("experience_id", req.ExperienceID).Msg("failed to resolve indicator")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve indicator"})
		return
	}

	if req.MembershipID != "" && !h.membershipAllows(c.Request.Context(), req.MembershipID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "membership is not active"})
		return
	}

	// An active grant with the same username needs no host call.
	existing, err := h.store.GetAccessGrant(c.Request.Context(), identity.UserID, indicator.ID)
	if err == nil && existing.IsActive && existing.TradingViewUsername == req.TradingViewUsername {
		c.JSON(http.StatusOK, gin.H{"granted": true, "alreadyGranted": true})
		return
	}
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.logger.Error().Err(err).Str("user_id", identity.UserID).Msg("failed to load existing grant")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load access state"})
		return
	}

	conn, err := h.store.GetConnectionByCompanyID(c.Request.Context(), indicator.CompanyID)
	if err != nil {
		h.logger.Error().Err(err).Str("company_id", indicator.CompanyID).Msg("seller connection unavailable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "the seller's host connection is unavailable"})
		return
	}

	client, err := h.tvFactory(conn.SessionID, conn.SessionIDSign)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build host client")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reach indicator host"})
		return
	}

	if err := client.GrantAccess(c.Request.Context(), indicator.TradingViewID, req.TradingViewUsername); err != nil {
		h.logger.Error().Err(err).
			Str("tradingview_id", indicator.TradingViewID).
			Str("tv_username", req.TradingViewUsername).
			Msg("host grant failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "the indicator host rejected the grant",
			"detail": err.Error(),
		})
		return
	}

	grant := models.NewAccessGrant(identity.UserID, indicator.ID, req.TradingViewUsername, nil)
	if req.MembershipID != "" {
		grant.MembershipID = &req.MembershipID
	}
	if _, err := h.store.UpsertAccessGrant(c.Request.Context(), grant); err != nil {
		// The host granted access but the database does not know.
		metrics.GrantDrift.Inc()
		h.logger.Error().Err(err).
			Str("user_id", identity.UserID).
			Str("tradingview_id", indicator.TradingViewID).
			Msg("host grant succeeded but recording failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "access was granted but could not be recorded, contact support",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"granted": true})
}

// membershipAllows checks the membership state when the buyer supplied one.
// Lookup failures do not block the buyer; the webhook reconciler is the
// authority for revocation.
func (h *AccessHandler) membershipAllows(ctx context.Context, membershipID string) bool {
	membership, err := h.whopClient.GetMembership(ctx, membershipID)
	if err != nil {
		h.logger.Warn().Err(err).Str("membership_id", membershipID).Msg("membership lookup failed, allowing")
		return true
	}
	return whop.IsMembershipActive(membership)
}
