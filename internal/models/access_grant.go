package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessGrant records one buyer's access to one indicator. Unique per
// (user_id, indicator_id). Grants are reactivated on repeat requests and
// marked inactive on revoke, never deleted.
//
// IsActive reflects a best-effort granted state on TradingView; the host can
// silently fail after reporting success, so the flag is not a consistency
// guarantee.
type AccessGrant struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              string     `json:"user_id"`
	IndicatorID         uuid.UUID  `json:"indicator_id"`
	TradingViewUsername string     `json:"tradingview_username"`
	IsActive            bool       `json:"is_active"`
	MembershipID        *string    `json:"membership_id,omitempty"`
	RevokedAt           *time.Time `json:"revoked_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// NewAccessGrant creates an active grant for a user and indicator.
func NewAccessGrant(userID string, indicatorID uuid.UUID, tradingViewUsername string, membershipID *string) *AccessGrant {
	now := time.Now()
	return &AccessGrant{
		ID:                  uuid.New(),
		UserID:              userID,
		IndicatorID:         indicatorID,
		TradingViewUsername: tradingViewUsername,
		IsActive:            true,
		MembershipID:        membershipID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Activate marks the grant active and clears any revocation.
func (g *AccessGrant) Activate(membershipID *string) {
	g.IsActive = true
	if membershipID != nil {
		g.MembershipID = membershipID
	}
	g.RevokedAt = nil
	g.UpdatedAt = time.Now()
}

// Revoke marks the grant inactive with a revocation timestamp.
func (g *AccessGrant) Revoke() {
	now := time.Now()
	g.IsActive = false
	g.RevokedAt = &now
	g.UpdatedAt = now
}
