package producer

import (
	"log/slog"

	"github.com/segmentio/kafka-go"
)

const defaultPartitions = 3

// ensureTopic creates topic when it does not exist. Failures are logged and
// left to the first write to surface.
func ensureTopic(broker, topic string, partitions int) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", broker,
			"topic", topic,
			"error", err,
		)
		return
	}
	defer conn.Close()

	if existing, err := conn.ReadPartitions(topic); err == nil && len(existing) > 0 {
		slog.Info("Topic already exists", "topic", topic, "partitions", len(existing))
		return
	}

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", topic,
			"error", err,
		)
		return
	}
	slog.Info("Created topic", "topic", topic, "partitions", partitions)
}
