// Package consumer provides Kafka consumer functionality for the alerts.new topic.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	kafkautil "github.com/Hibaxbelghith/argus-sub000/pkg/kafka"
)

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer wraps a Kafka reader and decodes alert events. Offsets are only
// committed through CommitMessage.
type Consumer struct {
	reader Reader
	topic  string
}

// NewConsumer creates a new Kafka consumer with the specified brokers, topic, and group ID.
// The consumer is configured for at-least-once delivery semantics.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	reader := kafka.NewReader(kafkautil.NewReaderConfig(brokerList, topic, groupID))

	slog.Info("Kafka consumer configured",
		"max_wait", kafkautil.MaxPollWait,
		"commit_interval", kafkautil.CommitInterval,
	)

	return NewWithReader(reader, topic), nil
}

// NewWithReader creates a consumer on an existing reader.
func NewWithReader(reader Reader, topic string) *Consumer {
	return &Consumer{reader: reader, topic: topic}
}

// ReadMessage fetches the next message and decodes it as an alert event.
// On a decode failure the raw message is still returned so the caller can
// commit past it.
func (c *Consumer) ReadMessage(ctx context.Context) (*alert.Event, *kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	event, err := DecodeMessage(msg)
	if err != nil {
		return nil, &msg, err
	}
	return event, &msg, nil
}

// DecodeMessage decodes msg using its content-type header.
func DecodeMessage(msg kafka.Message) (*alert.Event, error) {
	event, err := alert.Decode(msg.Value, kafkautil.Header(msg, kafkautil.ContentTypeHeader))
	if err != nil {
		return nil, fmt.Errorf("failed to decode alert at %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	return event, nil
}

// CommitMessage commits the offset for the given message.
// This should be called after the message has been handled.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	slog.Info("Kafka consumer closed successfully")
	return nil
}
