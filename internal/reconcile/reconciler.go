// Package reconcile turns membership webhook events into indicator access
// changes on the host.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/whop"
	"github.com/nicholaswood-whop/trading-view-whop/internal/metrics"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
	"github.com/rs/zerolog"
)

// Store is the persistence surface the reconciler needs.
type Store interface {
	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	MarkWebhookEventProcessed(ctx context.Context, id uuid.UUID, errMsg *string) error
	GetAccessGrantsByUser(ctx context.Context, userID string) ([]*models.AccessGrant, error)
	GetActiveGrantsByUserAndMembership(ctx context.Context, userID, membershipID string) ([]*models.AccessGrant, error)
	UpdateAccessGrant(ctx context.Context, grant *models.AccessGrant) error
	GetIndicatorByID(ctx context.Context, id uuid.UUID) (*models.Indicator, error)
	GetConnectionByCompanyID(ctx context.Context, companyID string) (*models.Connection, error)
}

// MembershipClient resolves memberships on the commerce platform.
type MembershipClient interface {
	GetMembership(ctx context.Context, membershipID string) (*whop.Membership, error)
}

// AccessClient performs access operations against the indicator host.
type AccessClient interface {
	GrantAccess(ctx context.Context, pineID, username string) error
	RevokeAccess(ctx context.Context, pineID, username string) error
}

// AccessClientFactory builds an AccessClient bound to a seller's session.
type AccessClientFactory func(conn *models.Connection) (AccessClient, error)

// Reconciler applies membership lifecycle events to access grants.
type Reconciler struct {
	store      Store
	whopClient MembershipClient
	newAccess  AccessClientFactory
	logger     zerolog.Logger
}

// New creates a reconciler.
func New(store Store, whopClient MembershipClient, newAccess AccessClientFactory, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:      store,
		whopClient: whopClient,
		newAccess:  newAccess,
		logger:     logger.With().Str("component", "reconciler").Logger(),
	}
}

// event is the membership payload normalized from either the nested or the
// flat webhook shape.
type event struct {
	Type         string
	MembershipID string
	UserID       string
	ProductID    string
	Status       string
}

// HandleEvent logs and processes one inbound webhook payload. The returned
// error describes processing failures; the payload has been recorded in the
// event log regardless.
func (r *Reconciler) HandleEvent(ctx context.Context, payload map[string]any) error {
	evt := parseEvent(payload)

	record := models.NewWebhookEvent(evt.Type, payload)
	if err := r.store.CreateWebhookEvent(ctx, record); err != nil {
		// The log is an audit trail, not a processing precondition.
		r.logger.Error().Err(err).Str("event_type", evt.Type).Msg("failed to log webhook event")
	}

	procErr := r.process(ctx, evt)

	outcome := "processed"
	var errMsg *string
	if procErr != nil {
		outcome = "failed"
		msg := procErr.Error()
		errMsg = &msg
	} else if !handledEvents[evt.Type] {
		outcome = "ignored"
	}
	metrics.WebhookEvents.WithLabelValues(evt.Type, outcome).Inc()

	if err := r.store.MarkWebhookEventProcessed(ctx, record.ID, errMsg); err != nil {
		r.logger.Error().Err(err).Str("event_id", record.ID.String()).Msg("failed to mark webhook event processed")
	}

	return procErr
}

func (r *Reconciler) process(ctx context.Context, evt event) error {
	logger := r.logger.With().
		Str("event_type", evt.Type).
		Str("membership_id", evt.MembershipID).
		Str("user_id", evt.UserID).
		Logger()

	switch evt.Type {
	case "membership.created", "membership.updated":
		return r.grantForMembership(ctx, evt, logger)
	case "membership.cancelled", "membership.expired", "membership.past_due":
		return r.revokeForMembership(ctx, evt, logger)
	default:
		logger.Debug().Msg("ignoring event type")
		return nil
	}
}

// grantForMembership re-activates every grant the buyer has already
// registered. Buyers with no grant rows have not submitted a username yet;
// there is nothing to grant until they do.
func (r *Reconciler) grantForMembership(ctx context.Context, evt event, logger zerolog.Logger) error {
	if evt.UserID == "" || evt.MembershipID == "" {
		return fmt.Errorf("reconcile: event missing user or membership id")
	}

	membership, err := r.whopClient.GetMembership(ctx, evt.MembershipID)
	if err != nil {
		return fmt.Errorf("reconcile: verify membership: %w", err)
	}
	if !whop.IsMembershipActive(membership) {
		logger.Info().Str("status", membership.Status).Msg("membership not active, skipping grant")
		return nil
	}

	grants, err := r.store.GetAccessGrantsByUser(ctx, evt.UserID)
	if err != nil {
		return fmt.Errorf("reconcile: load grants: %w", err)
	}
	if len(grants) == 0 {
		logger.Info().Msg("no registered grants for user, nothing to do")
		return nil
	}

	var failures []error
	for _, grant := range grants {
		if err := r.applyGrant(ctx, grant, evt.MembershipID); err != nil {
			logger.Error().Err(err).
				Str("grant_id", grant.ID.String()).
				Msg("grant failed")
			failures = append(failures, err)
			continue
		}
		logger.Info().
			Str("grant_id", grant.ID.String()).
			Str("tv_username", grant.TradingViewUsername).
			Msg("access granted")
	}
	return errors.Join(failures...)
}

func (r *Reconciler) applyGrant(ctx context.Context, grant *models.AccessGrant, membershipID string) error {
	access, indicator, err := r.accessForIndicator(ctx, grant.IndicatorID)
	if err != nil {
		return err
	}

	if err := access.GrantAccess(ctx, indicator.TradingViewID, grant.TradingViewUsername); err != nil {
		return fmt.Errorf("grant %s: %w", indicator.TradingViewID, err)
	}

	grant.Activate(&membershipID)
	if err := r.store.UpdateAccessGrant(ctx, grant); err != nil {
		// The host now has access the database does not know about.
		metrics.GrantDrift.Inc()
		return fmt.Errorf("record grant %s: %w", grant.ID, err)
	}
	return nil
}

// revokeForMembership revokes every active grant recorded for this
// membership. Grant rows are kept with revoked_at set so a later renewal
// can re-activate them.
func (r *Reconciler) revokeForMembership(ctx context.Context, evt event, logger zerolog.Logger) error {
	if evt.UserID == "" || evt.MembershipID == "" {
		return fmt.Errorf("reconcile: event missing user or membership id")
	}

	grants, err := r.store.GetActiveGrantsByUserAndMembership(ctx, evt.UserID, evt.MembershipID)
	if err != nil {
		return fmt.Errorf("reconcile: load active grants: %w", err)
	}
	if len(grants) == 0 {
		logger.Info().Msg("no active grants for membership, nothing to revoke")
		return nil
	}

	var failures []error
	for _, grant := range grants {
		if err := r.applyRevoke(ctx, grant); err != nil {
			logger.Error().Err(err).
				Str("grant_id", grant.ID.String()).
				Msg("revoke failed")
			failures = append(failures, err)
			continue
		}
		logger.Info().
			Str("grant_id", grant.ID.String()).
			Str("tv_username", grant.TradingViewUsername).
			Msg("access revoked")
	}
	return errors.Join(failures...)
}

func (r *Reconciler) applyRevoke(ctx context.Context, grant *models.AccessGrant) error {
	access, indicator, err := r.accessForIndicator(ctx, grant.IndicatorID)
	if err != nil {
		return err
	}

	if err := access.RevokeAccess(ctx, indicator.TradingViewID, grant.TradingViewUsername); err != nil {
		return fmt.Errorf("revoke %s: %w", indicator.TradingViewID, err)
	}

	grant.Revoke()
	if err := r.store.UpdateAccessGrant(ctx, grant); err != nil {
		metrics.GrantDrift.Inc()
		return fmt.Errorf("record revoke %s: %w", grant.ID, err)
	}
	return nil
}

// accessForIndicator resolves the indicator row and an access client bound
// to the owning seller's session.
func (r *Reconciler) accessForIndicator(ctx context.Context, indicatorID uuid.UUID) (AccessClient, *models.Indicator, error) {
	indicator, err := r.store.GetIndicatorByID(ctx, indicatorID)
	if err != nil {
		return nil, nil, fmt.Errorf("load indicator %s: %w", indicatorID, err)
	}

	conn, err := r.store.GetConnectionByCompanyID(ctx, indicator.CompanyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load connection for company %s: %w", indicator.CompanyID, err)
	}

	access, err := r.newAccess(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("build access client: %w", err)
	}
	return access, indicator, nil
}

// handledEvents are the membership lifecycle transitions that change
// access. Everything else is logged and ignored.
var handledEvents = map[string]bool{
	"membership.created":   true,
	"membership.updated":   true,
	"membership.cancelled": true,
	"membership.expired":   true,
	"membership.past_due":  true,
}

// parseEvent accepts both webhook shapes: fields nested under "data" or
// flattened at the top level.
func parseEvent(payload map[string]any) event {
	evt := event{
		Type: payloadString(payload, "type", "event_type", "action"),
	}

	fields := payload
	if data, ok := payload["data"].(map[string]any); ok {
		fields = data
	}

	evt.MembershipID = payloadString(fields, "id", "membership_id")
	evt.UserID = payloadString(fields, "user_id", "userId")
	evt.ProductID = payloadString(fields, "product_id", "productId")
	evt.Status = payloadString(fields, "status")
	return evt
}

func payloadString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
