package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"jobmate/proposal-service/internal/model"
)

// inboxSize caps the per-user notification list.
const inboxSize = 100

// Redis publishes notifications on Channel and keeps the latest ones in a
// per-user inbox list.
type Redis struct {
	rdb *redis.Client
}

// NewRedis returns a Redis notifier.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// InboxKey is the list holding userID's recent notifications.
func InboxKey(userID string) string {
	return "notifications:" + userID
}

// Notify implements Notifier.
func (r *Redis) Notify(ctx context.Context, userID string, n model.Notification) error {
	payload, err := encode(userID, n)
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, InboxKey(userID), payload)
		pipe.LTrim(ctx, InboxKey(userID), 0, inboxSize-1)
		pipe.Publish(ctx, Channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", Channel, err)
	}
	return nil
}
