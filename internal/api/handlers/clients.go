package handlers

import (
	"context"

	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/tradingview"
	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/whop"
)

// TradingViewClient is the indicator host surface the handlers use.
type TradingViewClient interface {
	VerifyConnection(ctx context.Context) error
	ListIndicators(ctx context.Context) ([]tradingview.Indicator, []tradingview.ProbeResult)
	GrantAccess(ctx context.Context, pineID, username string) error
	RevokeAccess(ctx context.Context, pineID, username string) error
}

// TradingViewFactory builds a host client bound to session credentials.
// Each seller has their own session, so clients are constructed per request.
type TradingViewFactory func(sessionID, sessionIDSign string) (TradingViewClient, error)

// WhopClient is the commerce platform surface the handlers use.
type WhopClient interface {
	GetMembership(ctx context.Context, membershipID string) (*whop.Membership, error)
	GetExperience(ctx context.Context, experienceID string) (*whop.Experience, error)
	IsUserOwnerOrAdmin(ctx context.Context, userID, companyID string) bool
}
