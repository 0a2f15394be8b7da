// Package handlers provides HTTP handlers for the notification service admin API.
package handlers

import (
	"context"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/inapp"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// NotificationService is the notification API the handlers drive.
type NotificationService interface {
	Create(ctx context.Context, in notifications.CreateNotification) (*notifications.Notification, error)
	Get(ctx context.Context, id string) (*notifications.Notification, error)
	List(ctx context.Context, filter notifications.ListFilter) (*notifications.ListResult, error)
	ByPatient(ctx context.Context, patientID string, limit, offset int) (*notifications.ListResult, error)
	Failed(ctx context.Context, limit, offset int) (*notifications.ListResult, error)
	CountPending(ctx context.Context) (int64, error)
	Send(ctx context.Context, id string) (bool, error)
	Retry(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

// InboxReader reads in-app inboxes.
type InboxReader interface {
	Inbox(ctx context.Context, recipientID string, limit int) ([]inapp.Item, error)
}

var _ NotificationService = (*notifications.Service)(nil)
var _ InboxReader = (*inapp.Sender)(nil)

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	notifications NotificationService
	inbox         InboxReader
}

// NewHandlers creates a new handlers instance. inbox may be nil when the
// in-app channel is not configured.
func NewHandlers(svc NotificationService, inbox InboxReader) *Handlers {
	return &Handlers{
		notifications: svc,
		inbox:         inbox,
	}
}
