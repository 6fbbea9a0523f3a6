package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
)

// Webhook event log methods

// CreateWebhookEvent appends an inbound webhook payload to the audit log.
func (db *DB) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	payload, err := event.PayloadJSON()
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO webhook_events (id, event_type, payload, processed, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.EventType, payload, event.Processed, event.Error, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

// MarkWebhookEventProcessed sets the processed flag and optional error text.
func (db *DB) MarkWebhookEventProcessed(ctx context.Context, id uuid.UUID, errMsg *string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, error = $2
		WHERE id = $1
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

// GetWebhookEventByID returns one logged event.
func (db *DB) GetWebhookEventByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	var payload []byte
	err := db.Pool.QueryRow(ctx, `
		SELECT id, event_type, payload, processed, error, created_at
		FROM webhook_events
		WHERE id = $1
	`, id).Scan(&event.ID, &event.EventType, &payload, &event.Processed, &event.Error, &event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	if err := event.SetPayload(payload); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	return &event, nil
}

// ListRecentWebhookEvents returns the newest events for operator debugging.
func (db *DB) ListRecentWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, event_type, payload, processed, error, created_at
		FROM webhook_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query webhook events: %w", err)
	}
	defer rows.Close()

	var events []*models.WebhookEvent
	for rows.Next() {
		var event models.WebhookEvent
		var payload []byte
		err := rows.Scan(&event.ID, &event.EventType, &payload, &event.Processed, &event.Error, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		if err := event.SetPayload(payload); err != nil {
			return nil, fmt.Errorf("parse webhook payload: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook events: %w", err)
	}
	return events, nil
}

// CleanupWebhookEvents deletes processed events older than the retention
// window. Returns the number of rows removed.
func (db *DB) CleanupWebhookEvents(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays)
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM webhook_events
		WHERE processed = TRUE AND created_at < $1
	`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup webhook events: %w", err)
	}
	return tag.RowsAffected(), nil
}
