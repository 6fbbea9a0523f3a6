// Package models defines the persisted record types for the tvgate server.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection stores a seller's TradingView session credentials for one
// company. There is at most one connection per company.
type Connection struct {
	ID            uuid.UUID `json:"id"`
	CompanyID     string    `json:"company_id"`
	SessionID     string    `json:"-"`
	SessionIDSign string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewConnection creates a new Connection for a company.
func NewConnection(companyID, sessionID, sessionIDSign string) *Connection {
	now := time.Now()
	return &Connection{
		ID:            uuid.New(),
		CompanyID:     companyID,
		SessionID:     sessionID,
		SessionIDSign: sessionIDSign,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
