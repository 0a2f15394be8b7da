// Package producer publishes AlertCreated events to Kafka.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	kafkautil "github.com/afikmenashe/patient-alerting/pkg/kafka"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/alerts"
)

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a Kafka writer and publishes alert events.
// Messages are keyed by patient ID so one patient's events stay ordered.
type Producer struct {
	writer messageWriter
	topic  string
}

var _ alerts.Publisher = (*Producer)(nil)

// New creates a Kafka producer for the given comma-separated brokers and topic.
func New(brokers, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	kafkautil.EnsureTopic(brokerList[0], topic)

	slog.Info("Kafka producer configured",
		"write_timeout", kafkautil.WriteTimeout,
		"required_acks", "RequireOne",
		"async", false,
		"partition_key", "patient_id",
	)

	return &Producer{
		writer: kafkautil.NewWriter(brokerList, topic),
		topic:  topic,
	}, nil
}

// buildMessage creates the Kafka message for an AlertCreated event.
func buildMessage(event *events.AlertCreatedEvent) (kafka.Message, error) {
	payload, err := event.Encode()
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.PatientID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: kafkautil.HeaderRoutingKey, Value: []byte(events.RoutingKeyAlertCreated)},
			{Key: kafkautil.HeaderEventType, Value: []byte(events.EventTypeAlertCreated)},
			{Key: kafkautil.HeaderSchemaVersion, Value: []byte(strconv.Itoa(event.SchemaVersion))},
			{Key: kafkautil.HeaderDeliveryAttempt, Value: []byte("1")},
		},
		Time: event.CreatedAt,
	}, nil
}

// PublishAlertCreated serializes the event and writes it synchronously.
func (p *Producer) PublishAlertCreated(ctx context.Context, event *events.AlertCreatedEvent) error {
	msg, err := buildMessage(event)
	if err != nil {
		slog.Error("Failed to marshal AlertCreated event",
			"alert_id", event.AlertID,
			"error", err,
		)
		return fmt.Errorf("failed to marshal alert created event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write message to Kafka",
			"alert_id", event.AlertID,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Info("Published AlertCreated event",
		"alert_id", event.AlertID,
		"patient_id", event.PatientID,
		"severity", event.Severity,
		"routing_key", events.RoutingKeyAlertCreated,
	)
	return nil
}

// Close gracefully closes the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
