package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
	"github.com/rs/zerolog"
)

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 1 << 20

// EventReconciler applies a webhook payload to access state.
type EventReconciler interface {
	HandleEvent(ctx context.Context, payload map[string]any) error
}

// EventLog reads back the webhook audit trail.
type EventLog interface {
	ListRecentWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error)
}

// WebhooksHandler receives membership webhooks from the commerce platform.
type WebhooksHandler struct {
	reconciler EventReconciler
	events     EventLog
	logger     zerolog.Logger
}

// NewWebhooksHandler creates a new WebhooksHandler.
func NewWebhooksHandler(reconciler EventReconciler, events EventLog, logger zerolog.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		reconciler: reconciler,
		events:     events,
		logger:     logger.With().Str("component", "webhooks_handler").Logger(),
	}
}

// RegisterRoutes registers the receiver on the given (public) router group.
func (h *WebhooksHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/whop", h.Receive)
}

// RegisterAuthedRoutes registers the audit trail listing for operators.
func (h *WebhooksHandler) RegisterAuthedRoutes(r *gin.RouterGroup) {
	r.GET("/webhooks/recent", h.Recent)
}

// Receive accepts a webhook delivery. The platform treats any non-2xx as a
// reason to retry, so processing failures are logged and swallowed; only an
// unreadable body is rejected.
// POST /api/webhooks/whop
func (h *WebhooksHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), payload); err != nil {
		h.logger.Error().Err(err).Msg("webhook processing failed")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Recent returns the newest logged webhook deliveries.
// GET /api/webhooks/recent
func (h *WebhooksHandler) Recent(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	events, err := h.events.ListRecentWebhookEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list webhook events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list webhook events"})
		return
	}
	if events == nil {
		events = []*models.WebhookEvent{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
