// Package dispatcher turns AlertCreated events into one notification per
// recipient role and attempts delivery of each immediately.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/directory"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// ErrInvalidEvent marks an event that can never be processed. Redelivering it does not help.
var ErrInvalidEvent = errors.New("invalid alert event")

// Custom metric names.
const (
	MetricEventsDispatched = "alert_events_dispatched"
	MetricRoleFailures     = "alert_role_failures"
)

// NotificationService is the part of notifications.Service the dispatcher uses.
type NotificationService interface {
	CreateForAlert(ctx context.Context, in notifications.CreateNotification) (*notifications.Notification, bool, error)
	Send(ctx context.Context, id string) (bool, error)
}

// Recorder is the subset of metrics the dispatcher reports.
type Recorder interface {
	RecordError()
	IncrementCustom(name string)
}

type noOpRecorder struct{}

func (noOpRecorder) RecordError()             {}
func (noOpRecorder) IncrementCustom(_ string) {}

// Dispatcher fans an alert out to its recipient roles.
type Dispatcher struct {
	service   NotificationService
	directory directory.Directory
	policy    channel.Policy
	metrics   Recorder
}

// New creates a dispatcher. A nil recorder disables metrics.
func New(service NotificationService, dir directory.Directory, policy channel.Policy, m Recorder) *Dispatcher {
	if m == nil {
		m = noOpRecorder{}
	}
	return &Dispatcher{
		service:   service,
		directory: dir,
		policy:    policy,
		metrics:   m,
	}
}

// Handle creates and sends the notifications of one alert. Roles are handled
// independently. A failure to create any role's notification is returned so
// the event is redelivered; creation is idempotent per alert and role, so
// redelivery only fills in what is missing. Delivery failures are not
// returned: they are recorded on the notification and picked up by the retry
// scheduler.
func (d *Dispatcher) Handle(ctx context.Context, evt *events.AlertCreatedEvent) error {
	if evt.AlertID == "" || strings.TrimSpace(evt.PatientID) == "" {
		return fmt.Errorf("%w: alert id and patient id are required", ErrInvalidEvent)
	}
	if evt.RolesDefaulted {
		slog.Warn("Alert event had no usable recipient roles, using defaults",
			"alert_id", evt.AlertID,
			"roles", evt.RecipientRoles,
		)
	}

	var errs []error
	for _, role := range uniqueRoles(evt.RecipientRoles) {
		if err := d.handleRole(ctx, evt, role); err != nil {
			if errors.Is(err, notifications.ErrInvalidNotification) {
				return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
			}
			d.metrics.IncrementCustom(MetricRoleFailures)
			errs = append(errs, fmt.Errorf("role %s: %w", role, err))
		}
	}
	if len(errs) > 0 {
		d.metrics.RecordError()
		return errors.Join(errs...)
	}

	d.metrics.IncrementCustom(MetricEventsDispatched)
	return nil
}

func (d *Dispatcher) handleRole(ctx context.Context, evt *events.AlertCreatedEvent, role events.Role) error {
	contact, err := d.directory.Lookup(ctx, evt.PatientID, role)
	if err != nil {
		return fmt.Errorf("failed to look up contact: %w", err)
	}

	priority := PriorityFor(evt.Severity)
	alertID := evt.AlertID
	in := notifications.CreateNotification{
		PatientID:        evt.PatientID,
		RecipientType:    string(role),
		RecipientID:      optional(contact.RecipientID),
		RecipientEmail:   optional(contact.Email),
		RecipientPhone:   optional(contact.Phone),
		NotificationType: notifications.TypeAlert,
		Channel:          d.policy.Select(priority, contact.Phone),
		Subject:          Subject(evt),
		Message:          Message(evt),
		RelatedEntityID:  &alertID,
		Priority:         priority,
	}

	n, created, err := d.service.CreateForAlert(ctx, in)
	if err != nil {
		return err
	}
	if n.Status != notifications.StatusPending {
		slog.Debug("Alert notification already handled",
			"alert_id", evt.AlertID,
			"notification_id", n.ID,
			"status", n.Status,
		)
		return nil
	}
	if created {
		slog.Info("Created alert notification",
			"alert_id", evt.AlertID,
			"notification_id", n.ID,
			"recipient_type", role,
			"channel", n.Channel,
		)
	}

	if _, err := d.service.Send(ctx, n.ID); err != nil {
		slog.Error("Failed to send alert notification",
			"alert_id", evt.AlertID,
			"notification_id", n.ID,
			"error", err,
		)
	}
	return nil
}

// uniqueRoles drops blank and case-insensitive duplicate roles, keeping order.
func uniqueRoles(roles []events.Role) []events.Role {
	seen := make(map[string]bool, len(roles))
	out := make([]events.Role, 0, len(roles))
	for _, r := range roles {
		key := strings.ToLower(strings.TrimSpace(string(r)))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, events.Role(strings.TrimSpace(string(r))))
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
