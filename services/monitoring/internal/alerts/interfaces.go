package alerts

import (
	"context"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/events"
)

// Store persists alerts.
type Store interface {
	// InsertAlert stores a new alert and returns the stored row.
	InsertAlert(ctx context.Context, a *Alert) (*Alert, error)

	// GetAlert returns ErrNotFound (wrapped) when the id does not exist.
	GetAlert(ctx context.Context, id string) (*Alert, error)

	// UpdateAlert writes a's mutable fields if the stored version equals a.Version.
	// Returns ErrConcurrentUpdate on a version mismatch and ErrNotFound if the row is gone.
	UpdateAlert(ctx context.Context, a *Alert) (*Alert, error)

	// ListAlerts returns a filtered, sorted page.
	ListAlerts(ctx context.Context, filter ListFilter) (*ListResult, error)

	// RecentAlertsByPatient returns the newest alerts of a patient by alert time.
	RecentAlertsByPatient(ctx context.Context, patientID string, limit int) ([]*Alert, error)

	// CountActiveAlerts counts active alerts, for one patient when patientID is non-empty.
	CountActiveAlerts(ctx context.Context, patientID string) (int64, error)

	// DeleteAlert removes an alert. Returns ErrNotFound (wrapped) when it does not exist.
	DeleteAlert(ctx context.Context, id string) error
}

// Publisher publishes alert events to the message bus.
type Publisher interface {
	PublishAlertCreated(ctx context.Context, event *events.AlertCreatedEvent) error
}

// MetricsRecorder defines the metrics operations needed by the service.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordPublished()
	RecordError()
	IncrementCustom(name string)
}

// NoOpMetrics is a null-object implementation of MetricsRecorder.
type NoOpMetrics struct{}

var _ MetricsRecorder = (*NoOpMetrics)(nil)

func (n *NoOpMetrics) RecordReceived()                 {}
func (n *NoOpMetrics) RecordProcessed(_ time.Duration) {}
func (n *NoOpMetrics) RecordPublished()                {}
func (n *NoOpMetrics) RecordError()                    {}
func (n *NoOpMetrics) IncrementCustom(_ string)        {}
