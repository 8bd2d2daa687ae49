package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-attendance/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the JSON body of every published domain event.
type Envelope struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

type Producer struct {
	Writer MessageWriter
	Logger *logger.Logger
	now    func() time.Time
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, log)
}

func NewProducerWithWriter(w MessageWriter, log *logger.Logger) *Producer {
	return &Producer{Writer: w, Logger: log, now: time.Now}
}

// Publish writes one domain event keyed by key, so every event for the same
// event or participant lands on the same partition.
func (p *Producer) Publish(ctx context.Context, eventType, key string, payload any) error {
	msgBytes, err := json.Marshal(Envelope{
		Type:       eventType,
		Key:        key,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	p.Logger.Debug("KAFKA", fmt.Sprintf("Publishing [%s]: %s", eventType, string(msgBytes)))

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   msgBytes,
		Headers: []kafka.Header{{Key: "type", Value: []byte(eventType)}},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.Logger.LogKafka("PUBLISHED", eventType, key)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
