package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
)

// Indicator methods

const indicatorColumns = `id, connection_id, company_id, tradingview_id, name, script_id, experience_id, created_at, updated_at`

// GetIndicatorsByCompanyID returns the full catalog for a company, ordered
// by name.
func (db *DB) GetIndicatorsByCompanyID(ctx context.Context, companyID string) ([]*models.Indicator, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+indicatorColumns+`
		FROM tradingview_indicators
		WHERE company_id = $1
		ORDER BY name ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query indicators: %w", err)
	}
	defer rows.Close()

	return scanIndicators(rows)
}

// GetUnattachedIndicators returns indicators of a connection not yet
// attached to any experience.
func (db *DB) GetUnattachedIndicators(ctx context.Context, connectionID uuid.UUID) ([]*models.Indicator, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+indicatorColumns+`
		FROM tradingview_indicators
		WHERE connection_id = $1 AND experience_id IS NULL
		ORDER BY name ASC
	`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("query unattached indicators: %w", err)
	}
	defer rows.Close()

	return scanIndicators(rows)
}

// GetIndicatorByID returns an indicator by its primary key.
func (db *DB) GetIndicatorByID(ctx context.Context, id uuid.UUID) (*models.Indicator, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+indicatorColumns+`
		FROM tradingview_indicators
		WHERE id = $1
	`, id)
	return scanIndicator(row)
}

// GetIndicatorByExperience returns the indicator attached to an experience
// for a company, or ErrNotFound.
func (db *DB) GetIndicatorByExperience(ctx context.Context, experienceID, companyID string) (*models.Indicator, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+indicatorColumns+`
		FROM tradingview_indicators
		WHERE experience_id = $1 AND company_id = $2
		LIMIT 1
	`, experienceID, companyID)
	return scanIndicator(row)
}

// UpsertIndicator inserts an indicator or refreshes name/script_id for an
// existing (connection_id, tradingview_id) pair. The attached experience is
// deliberately left untouched on update.
func (db *DB) UpsertIndicator(ctx context.Context, ind *models.Indicator) (*models.Indicator, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO tradingview_indicators (id, connection_id, company_id, tradingview_id, name, script_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (connection_id, tradingview_id) DO UPDATE
		SET name = EXCLUDED.name,
		    script_id = EXCLUDED.script_id,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+indicatorColumns+`
	`, ind.ID, ind.ConnectionID, ind.CompanyID, ind.TradingViewID, ind.Name, ind.ScriptID, ind.CreatedAt, time.Now())
	return scanIndicator(row)
}

// AttachIndicatorToExperience links an indicator to a Whop experience.
func (db *DB) AttachIndicatorToExperience(ctx context.Context, id uuid.UUID, experienceID string) (*models.Indicator, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE tradingview_indicators
		SET experience_id = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+indicatorColumns+`
	`, id, experienceID, time.Now())
	return scanIndicator(row)
}

func scanIndicator(row pgx.Row) (*models.Indicator, error) {
	var ind models.Indicator
	err := row.Scan(
		&ind.ID, &ind.ConnectionID, &ind.CompanyID, &ind.TradingViewID,
		&ind.Name, &ind.ScriptID, &ind.ExperienceID, &ind.CreatedAt, &ind.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan indicator: %w", err)
	}
	return &ind, nil
}

func scanIndicators(rows pgx.Rows) ([]*models.Indicator, error) {
	var indicators []*models.Indicator
	for rows.Next() {
		var ind models.Indicator
		err := rows.Scan(
			&ind.ID, &ind.ConnectionID, &ind.CompanyID, &ind.TradingViewID,
			&ind.Name, &ind.ScriptID, &ind.ExperienceID, &ind.CreatedAt, &ind.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		indicators = append(indicators, &ind)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicators: %w", err)
	}
	return indicators, nil
}
