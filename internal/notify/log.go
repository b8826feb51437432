package notify

import (
	"context"
	"log/slog"

	"jobmate/proposal-service/internal/model"
)

// Log writes notifications to a logger. Used for local runs.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Notify implements Notifier.
func (l *Log) Notify(ctx context.Context, userID string, n model.Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"userId", userID,
		"type", n.Type,
		"title", n.Title,
		"message", n.Message,
	)
	return nil
}
