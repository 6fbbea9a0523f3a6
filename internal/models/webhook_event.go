package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is one inbound webhook delivery from Whop. The table is an
// append-only audit trail, not a queue: there are no ordering or replay
// guarantees.
type WebhookEvent struct {
	ID        uuid.UUID      `json:"id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	Processed bool           `json:"processed"`
	Error     *string        `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewWebhookEvent creates an unprocessed webhook event record.
func NewWebhookEvent(eventType string, payload map[string]any) *WebhookEvent {
	return &WebhookEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Processed: false,
		CreatedAt: time.Now(),
	}
}

// PayloadJSON returns the payload as JSON bytes for storage.
func (e *WebhookEvent) PayloadJSON() ([]byte, error) {
	return json.Marshal(e.Payload)
}

// SetPayload sets the payload from JSON bytes.
func (e *WebhookEvent) SetPayload(data []byte) error {
	if len(data) == 0 {
		e.Payload = map[string]any{}
		return nil
	}
	return json.Unmarshal(data, &e.Payload)
}

// MarkProcessed flags the event as handled, recording an error if any.
func (e *WebhookEvent) MarkProcessed(errMsg string) {
	e.Processed = true
	if errMsg != "" {
		e.Error = &errMsg
	}
}
