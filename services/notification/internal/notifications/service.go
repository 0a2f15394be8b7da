package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Field limits enforced on create.
const (
	MaxRecipientTypeLength = 200
	MaxSubjectLength       = 300
	MaxMessageLength       = 2000
	MaxErrorMessageLength  = 500
)

// Custom metric names.
const (
	MetricCreated      = "notifications_created"
	MetricDeduplicated = "notifications_deduplicated"
	MetricRetried      = "notifications_retried"
	MetricCancelled    = "notifications_cancelled"
)

// Service implements notification creation and the delivery state machine:
// Pending -> Sent | Failed | Cancelled, and Failed -> Pending on retry.
type Service struct {
	store     Store
	deliverer Deliverer
	metrics   MetricsRecorder
	now       func() time.Time
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithMetrics sets the metrics recorder. A nil recorder is ignored.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a notification service.
func NewService(store Store, deliverer Deliverer, opts ...Option) *Service {
	s := &Service{
		store:     store,
		deliverer: deliverer,
		metrics:   &NoOpMetrics{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a new Pending notification.
func (s *Service) Create(ctx context.Context, in CreateNotification) (*Notification, error) {
	n, err := s.build(in)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.InsertNotification(ctx, n)
	if err != nil {
		s.metrics.RecordError()
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.metrics.IncrementCustom(MetricCreated)

	slog.Info("Created notification",
		"notification_id", stored.ID,
		"patient_id", stored.PatientID,
		"recipient_type", stored.RecipientType,
		"channel", stored.Channel,
	)
	return stored, nil
}

// CreateForAlert stores the notification of an alert for one recipient type.
// If one already exists it is returned with created set to false.
func (s *Service) CreateForAlert(ctx context.Context, in CreateNotification) (*Notification, bool, error) {
	if in.RelatedEntityID == nil || *in.RelatedEntityID == "" {
		return nil, false, fmt.Errorf("%w: related alert id is required", ErrInvalidNotification)
	}
	entity := RelatedEntityAlert
	in.RelatedEntityType = &entity

	n, err := s.build(in)
	if err != nil {
		return nil, false, err
	}

	stored, created, err := s.store.InsertNotificationIdempotent(ctx, n)
	if err != nil {
		s.metrics.RecordError()
		return nil, false, fmt.Errorf("failed to create alert notification: %w", err)
	}
	if created {
		s.metrics.IncrementCustom(MetricCreated)
		return stored, true, nil
	}

	s.metrics.IncrementCustom(MetricDeduplicated)
	existing, err := s.store.GetAlertNotification(ctx, *in.RelatedEntityID, in.RecipientType)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing alert notification: %w", err)
	}
	slog.Debug("Alert notification already exists",
		"notification_id", existing.ID,
		"alert_id", *in.RelatedEntityID,
		"recipient_type", in.RecipientType,
	)
	return existing, false, nil
}

func (s *Service) build(in CreateNotification) (*Notification, error) {
	if err := validateCreate(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}

	now := s.now()
	return &Notification{
		ID:                uuid.NewString(),
		PatientID:         in.PatientID,
		RecipientType:     in.RecipientType,
		RecipientID:       in.RecipientID,
		RecipientEmail:    in.RecipientEmail,
		RecipientPhone:    in.RecipientPhone,
		NotificationType:  in.NotificationType,
		Channel:           in.Channel,
		Subject:           in.Subject,
		Message:           in.Message,
		Status:            StatusPending,
		RelatedEntityID:   in.RelatedEntityID,
		RelatedEntityType: in.RelatedEntityType,
		Priority:          in.Priority,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// validateCreate checks required fields, canonicalises enum spellings and
// fills the default priority.
func validateCreate(in *CreateNotification) error {
	switch {
	case in.PatientID == "":
		return errors.New("patient id is required")
	case in.RecipientType == "":
		return errors.New("recipient type is required")
	case len(in.RecipientType) > MaxRecipientTypeLength:
		return fmt.Errorf("recipient type cannot exceed %d characters", MaxRecipientTypeLength)
	case in.Subject == "":
		return errors.New("subject is required")
	case len(in.Subject) > MaxSubjectLength:
		return fmt.Errorf("subject cannot exceed %d characters", MaxSubjectLength)
	case in.Message == "":
		return errors.New("message is required")
	case len(in.Message) > MaxMessageLength:
		return fmt.Errorf("message cannot exceed %d characters", MaxMessageLength)
	}
	channel, ok := ParseChannel(string(in.Channel))
	if !ok {
		return fmt.Errorf("unknown channel %q", in.Channel)
	}
	in.Channel = channel
	typ, ok := ParseType(string(in.NotificationType))
	if !ok {
		return fmt.Errorf("unknown notification type %q", in.NotificationType)
	}
	in.NotificationType = typ
	if in.Priority == "" {
		in.Priority = PriorityNormal
	} else {
		priority, ok := ParsePriority(string(in.Priority))
		if !ok {
			return fmt.Errorf("unknown priority %q", in.Priority)
		}
		in.Priority = priority
	}
	return nil
}

// Send attempts delivery of a Pending notification. It returns false without
// side effects unless the notification is Pending. Otherwise the notification
// ends Sent (true) or Failed with retry_count incremented (false). A delivery
// failure is not an error; errors are reserved for lookups and storage.
func (s *Service) Send(ctx context.Context, id string) (bool, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return false, err
	}
	if n.Status != StatusPending {
		slog.Debug("Notification not sent, status is not Pending", "notification_id", id, "status", n.Status)
		return false, nil
	}
	return s.deliver(ctx, n)
}

// Retry moves a Failed notification back to Pending and sends it again.
// It returns false without side effects unless the notification is Failed.
func (s *Service) Retry(ctx context.Context, id string) (bool, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return false, err
	}
	if n.Status != StatusFailed {
		return false, nil
	}

	n.Status = StatusPending
	n.ErrorMessage = nil
	n.UpdatedAt = s.now()
	ok, err := s.store.TransitionNotification(ctx, n, StatusFailed)
	if err != nil {
		s.metrics.RecordError()
		return false, fmt.Errorf("failed to reset notification %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}
	s.metrics.IncrementCustom(MetricRetried)

	return s.deliver(ctx, n)
}

// Cancel moves a Pending notification to Cancelled, which is terminal.
func (s *Service) Cancel(ctx context.Context, id string) (bool, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return false, err
	}
	if n.Status != StatusPending {
		return false, nil
	}

	n.Status = StatusCancelled
	n.UpdatedAt = s.now()
	ok, err := s.store.TransitionNotification(ctx, n, StatusPending)
	if err != nil {
		s.metrics.RecordError()
		return false, fmt.Errorf("failed to cancel notification %s: %w", id, err)
	}
	if ok {
		s.metrics.IncrementCustom(MetricCancelled)
		slog.Info("Cancelled notification", "notification_id", id)
	}
	return ok, nil
}

// deliver hands a Pending notification to its channel and records the outcome.
func (s *Service) deliver(ctx context.Context, n *Notification) (bool, error) {
	start := time.Now()
	deliverErr := s.deliverer.Deliver(ctx, n)

	now := s.now()
	if deliverErr == nil {
		n.Status = StatusSent
		n.SentAt = &now
		n.ErrorMessage = nil
	} else {
		msg := truncate(deliverErr.Error(), MaxErrorMessageLength)
		n.Status = StatusFailed
		n.RetryCount++
		n.ErrorMessage = &msg
	}
	n.UpdatedAt = now

	ok, err := s.store.TransitionNotification(ctx, n, StatusPending)
	if err != nil {
		s.metrics.RecordError()
		return false, fmt.Errorf("failed to record delivery of notification %s: %w", n.ID, err)
	}
	if !ok {
		slog.Warn("Notification changed state during delivery, result discarded",
			"notification_id", n.ID,
			"result", n.Status,
		)
		return false, nil
	}

	if deliverErr != nil {
		s.metrics.RecordFailed()
		slog.Warn("Notification delivery failed",
			"notification_id", n.ID,
			"channel", n.Channel,
			"retry_count", n.RetryCount,
			"error", deliverErr,
		)
		return false, nil
	}

	s.metrics.RecordSent()
	s.metrics.RecordProcessed(time.Since(start))
	slog.Info("Notification sent",
		"notification_id", n.ID,
		"channel", n.Channel,
		"recipient_type", n.RecipientType,
	)
	return true, nil
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Get returns a notification by id.
func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	return s.store.GetNotification(ctx, id)
}

// List returns a filtered page of notifications.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	return s.store.ListNotifications(ctx, filter)
}

// ByPatient returns a patient's notifications, newest first.
func (s *Service) ByPatient(ctx context.Context, patientID string, limit, offset int) (*ListResult, error) {
	return s.store.ListNotifications(ctx, ListFilter{PatientID: patientID, Limit: limit, Offset: offset})
}

// Failed returns Failed notifications, newest first.
func (s *Service) Failed(ctx context.Context, limit, offset int) (*ListResult, error) {
	return s.store.ListNotifications(ctx, ListFilter{Status: StatusFailed, Limit: limit, Offset: offset})
}

// CountPending counts Pending notifications.
func (s *Service) CountPending(ctx context.Context) (int64, error) {
	return s.store.CountByStatus(ctx, StatusPending)
}

// Due returns up to limit Pending notifications, oldest first.
func (s *Service) Due(ctx context.Context, limit int) ([]*Notification, error) {
	return s.store.ListDue(ctx, limit)
}

// Retryable returns up to limit Failed notifications that have failed fewer
// than maxRetries times, oldest first.
func (s *Service) Retryable(ctx context.Context, maxRetries, limit int) ([]*Notification, error) {
	return s.store.ListRetryable(ctx, maxRetries, limit)
}
