package notifications

import (
	"context"
	"time"
)

// Store persists notifications.
type Store interface {
	// InsertNotification stores a new notification.
	InsertNotification(ctx context.Context, n *Notification) (*Notification, error)

	// InsertNotificationIdempotent stores an alert notification unless one already
	// exists for the same alert and recipient type. On conflict it returns nil, false, nil.
	InsertNotificationIdempotent(ctx context.Context, n *Notification) (stored *Notification, created bool, err error)

	// GetNotification returns ErrNotFound (wrapped) when the id does not exist.
	GetNotification(ctx context.Context, id string) (*Notification, error)

	// GetAlertNotification returns the notification for an alert and recipient type.
	GetAlertNotification(ctx context.Context, alertID, recipientType string) (*Notification, error)

	// TransitionNotification writes n's status, sent_at, error_message and retry_count
	// if the stored status still equals from. It reports whether the row was updated.
	TransitionNotification(ctx context.Context, n *Notification, from Status) (bool, error)

	// ListNotifications returns a filtered page, newest first.
	ListNotifications(ctx context.Context, filter ListFilter) (*ListResult, error)

	// ListDue returns Pending notifications, oldest first.
	ListDue(ctx context.Context, limit int) ([]*Notification, error)

	// ListRetryable returns Failed notifications with retry_count below maxRetries, oldest first.
	ListRetryable(ctx context.Context, maxRetries, limit int) ([]*Notification, error)

	// CountByStatus counts notifications in a status.
	CountByStatus(ctx context.Context, status Status) (int64, error)
}

// Deliverer sends a notification through its channel.
type Deliverer interface {
	Deliver(ctx context.Context, n *Notification) error
}

// MetricsRecorder defines the metrics operations needed by the service.
type MetricsRecorder interface {
	RecordProcessed(latency time.Duration)
	RecordError()
	RecordSent()
	RecordFailed()
	IncrementCustom(name string)
}

// NoOpMetrics is a null-object implementation of MetricsRecorder.
type NoOpMetrics struct{}

var _ MetricsRecorder = (*NoOpMetrics)(nil)

func (n *NoOpMetrics) RecordProcessed(_ time.Duration) {}
func (n *NoOpMetrics) RecordError()                    {}
func (n *NoOpMetrics) RecordSent()                     {}
func (n *NoOpMetrics) RecordFailed()                   {}
func (n *NoOpMetrics) IncrementCustom(_ string)        {}
