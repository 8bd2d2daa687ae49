package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"ms-attendance/internal/logger"

	"github.com/segmentio/kafka-go"
)

// EnsureTopicsExist creates Kafka topics if they don't already exist. It
// fails only when the cluster cannot be reached; a topic that cannot be
// created is logged and skipped.
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	// Connect to the first broker to find the controller
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.LogKafka("EXISTS", topic, "topic already exists")
		case err != nil:
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		default:
			log.LogKafka("CREATED", topic, "topic created")
		}
	}
	return nil
}
