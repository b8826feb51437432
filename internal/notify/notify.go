// Package notify delivers user notifications over Redis, Kafka or the log.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobmate/proposal-service/internal/model"
)

// Channel is the Redis pub/sub channel carrying notification events.
const Channel = "EVENT_NOTIFICATION"

// Event is the wire form of a notification.
type Event struct {
	Type      string         `json:"type"`
	UserID    string         `json:"userId"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewEvent wraps n for delivery to userID.
func NewEvent(userID string, n model.Notification, now time.Time) Event {
	return Event{
		Type:      n.Type,
		UserID:    userID,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		CreatedAt: now.UTC(),
	}
}

func encode(userID string, n model.Notification) ([]byte, error) {
	raw, err := json.Marshal(NewEvent(userID, n, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return raw, nil
}

// Notifier is satisfied by every backend.
type Notifier interface {
	Notify(ctx context.Context, userID string, n model.Notification) error
}
