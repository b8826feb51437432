package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"jobmate/proposal-service/internal/model"
)

// DefaultTopic receives notifications when no topic is configured.
const DefaultTopic = "proposal.notifications"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes notifications keyed by user id, so one user's events stay
// ordered within a partition.
type Kafka struct {
	w messageWriter
}

// NewKafka returns a Kafka notifier writing to topic.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Kafka{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}, nil
}

// Notify implements Notifier.
func (k *Kafka) Notify(ctx context.Context, userID string, n model.Notification) error {
	payload, err := encode(userID, n)
	if err != nil {
		return err
	}
	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(n.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}
