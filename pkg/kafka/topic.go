package kafka

import (
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Topic defaults used when a topic has to be created.
const (
	DefaultPartitions        = 3
	DefaultReplicationFactor = 1
)

// EnsureTopic creates the topic on the first broker if it does not exist.
// This is best effort: failures are logged and the first write surfaces any real problem.
func EnsureTopic(broker, topic string) {
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

	if partitions, err := conn.ReadPartitions(topic); err == nil && len(partitions) > 0 {
		slog.Info("Topic already exists", "topic", topic, "partitions", len(partitions))
		return
	}

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     DefaultPartitions,
		ReplicationFactor: DefaultReplicationFactor,
	})
	if err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", topic,
			"error", err,
		)
		return
	}

	// Topic creation is asynchronous.
	for i := 0; i < 5; i++ {
		time.Sleep(time.Second)
		if partitions, err := conn.ReadPartitions(topic); err == nil && len(partitions) > 0 {
			slog.Info("Created topic", "topic", topic, "partitions", len(partitions))
			return
		}
	}
	slog.Warn("Topic created but may not be fully available yet", "topic", topic)
}
