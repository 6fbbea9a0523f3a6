package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Connection methods

// GetConnectionByCompanyID returns the TradingView connection for a company.
func (db *DB) GetConnectionByCompanyID(ctx context.Context, companyID string) (*models.Connection, error) {
	var c models.Connection
	err := db.Pool.QueryRow(ctx, `
		SELECT id, company_id, session_id, session_id_sign, created_at, updated_at
		FROM tradingview_connections
		WHERE company_id = $1
	`, companyID).Scan(&c.ID, &c.CompanyID, &c.SessionID, &c.SessionIDSign, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get connection by company: %w", err)
	}
	return &c, nil
}

// UpsertConnection creates the company's connection or refreshes its
// credentials if one already exists. Returns the stored record.
func (db *DB) UpsertConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	var stored models.Connection
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO tradingview_connections (id, company_id, session_id, session_id_sign, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id) DO UPDATE
		SET session_id = EXCLUDED.session_id,
		    session_id_sign = EXCLUDED.session_id_sign,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, company_id, session_id, session_id_sign, created_at, updated_at
	`, conn.ID, conn.CompanyID, conn.SessionID, conn.SessionIDSign, conn.CreatedAt, time.Now()).Scan(
		&stored.ID, &stored.CompanyID, &stored.SessionID, &stored.SessionIDSign, &stored.CreatedAt, &stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert connection: %w", err)
	}
	return &stored, nil
}

// DeleteConnectionByCompanyID removes the company's connection. Indicators
// cascade with it.
func (db *DB) DeleteConnectionByCompanyID(ctx context.Context, companyID string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tradingview_connections WHERE company_id = $1`, companyID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
