package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

// MockProducer logs alerts instead of publishing them. Useful for dry runs
// without a Kafka instance.
type MockProducer struct {
	topic string
}

var _ AlertPublisher = (*MockProducer)(nil)

// NewMock creates a mock producer for topic.
func NewMock(topic string) *MockProducer {
	slog.Info("Using mock producer (no Kafka connection)", "topic", topic)
	return &MockProducer{topic: topic}
}

// PublishAlert logs event as JSON.
func (p *MockProducer) PublishAlert(_ context.Context, event *alert.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	slog.Info("Mock publish (alert logged, not sent to Kafka)",
		"topic", p.topic,
		"alert_id", event.ID,
		"user_id", event.UserID,
		"severity", event.Severity,
		"alert_json", string(payload),
	)
	return nil
}

// Close is a no-op.
func (p *MockProducer) Close() error {
	return nil
}
