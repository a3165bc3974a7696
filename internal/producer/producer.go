// Package producer publishes alert events to alerts.new and delivery log
// entries to delivery.events.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	kafkautil "github.com/Hibaxbelghith/argus-sub000/pkg/kafka"
)

// Default topic names.
const (
	TopicAlerts         = "alerts.new"
	TopicDeliveryEvents = "delivery.events"
	TopicDeadLetter     = "alerts.dlq"
)

const topicRetryDelay = 2 * time.Second

// Writer is the subset of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AlertPublisher publishes alert events.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event *alert.Event) error
	Close() error
}

// Producer wraps a Kafka writer for one topic.
type Producer struct {
	writer      Writer
	topic       string
	contentType string
	retryDelay  time.Duration
}

var _ AlertPublisher = (*Producer)(nil)

// New creates a producer for topic. Alerts are encoded as contentType, JSON
// when empty. The topic is created when missing.
func New(brokers, topic, contentType string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = alert.ContentTypeJSON
	}
	if contentType != alert.ContentTypeJSON && contentType != alert.ContentTypeProtobuf {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	brokerList := kafkautil.ParseBrokers(brokers)
	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
		"content_type", contentType,
	)

	ensureTopic(brokerList[0], topic, defaultPartitions)

	p := NewWithWriter(kafkautil.NewWriter(brokerList, topic), topic)
	p.contentType = contentType
	return p, nil
}

// NewWithWriter creates a JSON producer on an existing writer.
func NewWithWriter(w Writer, topic string) *Producer {
	return &Producer{
		writer:      w,
		topic:       topic,
		contentType: alert.ContentTypeJSON,
		retryDelay:  topicRetryDelay,
	}
}

// PublishAlert encodes event and publishes it keyed by user id, so one
// user's events stay on one partition.
func (p *Producer) PublishAlert(ctx context.Context, event *alert.Event) error {
	payload, err := alert.Encode(event, p.contentType)
	if err != nil {
		slog.Error("Failed to encode alert",
			"alert_id", event.ID,
			"error", err,
		)
		return err
	}

	msg := kafka.Message{
		Key:   kafkautil.PartitionKey(event.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: kafkautil.ContentTypeHeader, Value: []byte(p.contentType)},
			{Key: "alert_id", Value: []byte(event.ID)},
			{Key: "severity", Value: []byte(event.Severity)},
		},
		Time: event.OccurredAt,
	}
	if err := p.write(ctx, msg); err != nil {
		slog.Error("Failed to write alert to Kafka",
			"alert_id", event.ID,
			"topic", p.topic,
			"error", err,
		)
		return err
	}
	return nil
}

// PublishLog publishes a delivery log entry as JSON keyed by delivery id.
func (p *Producer) PublishLog(ctx context.Context, entry *delivery.LogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery log entry: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(entry.DeliveryID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: kafkautil.ContentTypeHeader, Value: []byte(alert.ContentTypeJSON)},
			{Key: "event", Value: []byte(entry.Event)},
		},
		Time: entry.CreatedAt,
	}
	return p.write(ctx, msg)
}

// write sends msg synchronously, retrying once when the topic is not ready yet.
func (p *Producer) write(ctx context.Context, msg kafka.Message) error {
	const maxAttempts = 2
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		if !topicNotReady(err) || attempt == maxAttempts {
			break
		}
		slog.Info("Topic not ready, retrying after delay",
			"topic", p.topic,
			"attempt", attempt,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryDelay):
		}
	}
	return fmt.Errorf("failed to write message to Kafka: %w", err)
}

func topicNotReady(err error) bool {
	if errors.Is(err, kafka.UnknownTopicOrPartition) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Unknown Topic Or Partition") || strings.Contains(msg, "does not exist")
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	slog.Info("Kafka producer closed successfully")
	return nil
}
