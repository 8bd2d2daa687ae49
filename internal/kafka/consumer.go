package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-attendance/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReceivedEvent is an Envelope read back from the topic with its payload left
// undecoded.
type ReceivedEvent struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
	Partition  int             `json:"partition"`
	Offset     int64           `json:"offset"`
}

type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log}
}

// Run delivers every decodable envelope to handler until ctx is cancelled or
// handler fails. Messages that are not envelopes are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handler func(ReceivedEvent) error) error {
	c.Logger.Info("KAFKA", "Kafka consumer started")
	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var ev ReceivedEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.Type == "" {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Skipping undecodable message at %s/%d@%d", msg.Topic, msg.Partition, msg.Offset))
			continue
		}
		ev.Partition, ev.Offset = msg.Partition, msg.Offset

		c.Logger.LogKafka("RECEIVED", msg.Topic, fmt.Sprintf("%s key=%s", ev.Type, ev.Key))
		if err := handler(ev); err != nil {
			return fmt.Errorf("handle %s: %w", ev.Type, err)
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
