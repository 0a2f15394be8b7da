package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/alerts"
)

// MockProducer logs events instead of publishing them. Used when running without Kafka.
type MockProducer struct {
	topic string
}

var _ alerts.Publisher = (*MockProducer)(nil)

// NewMock creates a producer that only logs.
func NewMock(topic string) *MockProducer {
	slog.Info("Using mock producer (no Kafka connection)",
		"topic", topic,
		"note", "AlertCreated events will be logged but not published",
	)
	return &MockProducer{topic: topic}
}

// PublishAlertCreated logs the event as JSON.
func (p *MockProducer) PublishAlertCreated(ctx context.Context, event *events.AlertCreatedEvent) error {
	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal alert created event: %w", err)
	}
	slog.Info("Mock publish (event logged, not sent to Kafka)",
		"topic", p.topic,
		"alert_id", event.AlertID,
		"routing_key", events.RoutingKeyAlertCreated,
		"event_json", string(payload),
	)
	return nil
}

// Close is a no-op.
func (p *MockProducer) Close() error {
	slog.Info("Mock producer closed", "topic", p.topic)
	return nil
}
