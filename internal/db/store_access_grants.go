package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
)

// Access grant methods

const grantColumns = `id, user_id, indicator_id, tradingview_username, is_active, membership_id, revoked_at, created_at, updated_at`

// GetAccessGrant returns the grant for a (user, indicator) pair.
func (db *DB) GetAccessGrant(ctx context.Context, userID string, indicatorID uuid.UUID) (*models.AccessGrant, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE user_id = $1 AND indicator_id = $2
	`, userID, indicatorID)
	return scanAccessGrant(row)
}

// GetAccessGrantsByUser returns all grants of a user, active or not.
func (db *DB) GetAccessGrantsByUser(ctx context.Context, userID string) ([]*models.AccessGrant, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query access grants by user: %w", err)
	}
	defer rows.Close()

	return scanAccessGrants(rows)
}

// GetActiveGrantsByUserAndMembership returns the user's currently active
// grants recorded under a membership.
func (db *DB) GetActiveGrantsByUserAndMembership(ctx context.Context, userID, membershipID string) ([]*models.AccessGrant, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE user_id = $1 AND membership_id = $2 AND is_active = TRUE
		ORDER BY created_at ASC
	`, userID, membershipID)
	if err != nil {
		return nil, fmt.Errorf("query active grants: %w", err)
	}
	defer rows.Close()

	return scanAccessGrants(rows)
}

// UpsertAccessGrant inserts a grant or reactivates/updates the existing
// (user_id, indicator_id) record. Repeated grants never create a second row.
func (db *DB) UpsertAccessGrant(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO access_grants (id, user_id, indicator_id, tradingview_username, is_active, membership_id, revoked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, indicator_id) DO UPDATE
		SET tradingview_username = EXCLUDED.tradingview_username,
		    is_active = EXCLUDED.is_active,
		    membership_id = COALESCE(EXCLUDED.membership_id, access_grants.membership_id),
		    revoked_at = EXCLUDED.revoked_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+grantColumns+`
	`, grant.ID, grant.UserID, grant.IndicatorID, grant.TradingViewUsername,
		grant.IsActive, grant.MembershipID, grant.RevokedAt, grant.CreatedAt, grant.UpdatedAt)
	return scanAccessGrant(row)
}

// UpdateAccessGrant persists the mutable fields of an existing grant.
func (db *DB) UpdateAccessGrant(ctx context.Context, grant *models.AccessGrant) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE access_grants
		SET tradingview_username = $2, is_active = $3, membership_id = $4,
		    revoked_at = $5, updated_at = $6
		WHERE id = $1
	`, grant.ID, grant.TradingViewUsername, grant.IsActive, grant.MembershipID,
		grant.RevokedAt, grant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update access grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccessGrant(row pgx.Row) (*models.AccessGrant, error) {
	var g models.AccessGrant
	err := row.Scan(
		&g.ID, &g.UserID, &g.IndicatorID, &g.TradingViewUsername,
		&g.IsActive, &g.MembershipID, &g.RevokedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan access grant: %w", err)
	}
	return &g, nil
}

func scanAccessGrants(rows pgx.Rows) ([]*models.AccessGrant, error) {
	var grants []*models.AccessGrant
	for rows.Next() {
		var g models.AccessGrant
		err := rows.Scan(
			&g.ID, &g.UserID, &g.IndicatorID, &g.TradingViewUsername,
			&g.IsActive, &g.MembershipID, &g.RevokedAt, &g.CreatedAt, &g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan access grant: %w", err)
		}
		grants = append(grants, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access grants: %w", err)
	}
	return grants, nil
}
