package models

import (
	"time"

	"github.com/google/uuid"
)

// Indicator is a TradingView script in a company's catalog. It belongs to
// one connection and may be attached to a Whop experience once a seller
// links it to a product. Unique per (connection_id, tradingview_id).
type Indicator struct {
	ID            uuid.UUID `json:"id"`
	ConnectionID  uuid.UUID `json:"connection_id"`
	CompanyID     string    `json:"company_id"`
	TradingViewID string    `json:"tradingview_id"`
	Name          string    `json:"name"`
	ScriptID      *string   `json:"script_id,omitempty"`
	ExperienceID  *string   `json:"experience_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewIndicator creates a new Indicator in a connection's catalog.
func NewIndicator(connectionID uuid.UUID, companyID, tradingViewID, name string) *Indicator {
	now := time.Now()
	return &Indicator{
		ID:            uuid.New(),
		ConnectionID:  connectionID,
		CompanyID:     companyID,
		TradingViewID: tradingViewID,
		Name:          name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
