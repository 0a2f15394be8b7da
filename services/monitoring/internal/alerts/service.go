package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/classifier"
)

// DedupWindow is how many of a patient's most recent alerts the admission gate inspects.
const DedupWindow = 10

// MaxTitleLength and MaxDescriptionLength bound free-text alert fields.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

// Custom metric names.
const (
	MetricAlertsCreated    = "alerts_created"
	MetricAlertsSuppressed = "alerts_suppressed"
	MetricPublishFailures  = "publish_failures"
)

// Service implements alert admission and lifecycle operations.
type Service struct {
	store     Store
	publisher Publisher
	metrics   MetricsRecorder
	now       func() time.Time
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithMetrics sets the metrics recorder.
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

// NewService creates an alert service.
func NewService(store Store, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: publisher,
		metrics:   &NoOpMetrics{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit creates an alert for the candidate unless one of the patient's recent
// alerts was raised by the same observation and is still active. A suppressed
// candidate returns (nil, nil).
//
// The check and the insert are not atomic: two concurrent Admit calls for the
// same observation can both create an alert. The scheduler avoids this by giving
// each patient to a single worker.
func (s *Service) Admit(ctx context.Context, c classifier.Candidate) (*Alert, error) {
	s.metrics.RecordReceived()

	recent, err := s.store.RecentAlertsByPatient(ctx, c.PatientID, DedupWindow)
	if err != nil {
		s.metrics.RecordError()
		return nil, fmt.Errorf("failed to load recent alerts: %w", err)
	}
	for _, a := range recent {
		if a.TriggeredBy(c.ObservationID) && a.IsActive() {
			s.metrics.IncrementCustom(MetricAlertsSuppressed)
			slog.Debug("Suppressed duplicate alert",
				"patient_id", c.PatientID,
				"observation_id", c.ObservationID,
				"existing_alert_id", a.ID,
				"title", c.Title,
			)
			return nil, nil
		}
	}

	description := c.Description
	observationID := c.ObservationID
	return s.Create(ctx, CreateAlert{
		PatientID:               c.PatientID,
		AlertDateTime:           c.OccurredAt,
		Title:                   c.Title,
		Description:             &description,
		Severity:                c.Severity,
		TriggeringObservationID: &observationID,
	})
}

// Create persists a new alert in status New and publishes AlertCreated.
// If publishing fails the persisted alert is still returned, together with an
// error wrapping ErrPublishFailed.
func (s *Service) Create(ctx context.Context, in CreateAlert) (*Alert, error) {
	start := time.Now()
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now()
	alertTime := in.AlertDateTime
	if alertTime.IsZero() {
		alertTime = now
	}

	created, err := s.store.InsertAlert(ctx, &Alert{
		ID:                      uuid.NewString(),
		PatientID:               in.PatientID,
		AlertDateTime:           alertTime.UTC(),
		Title:                   in.Title,
		Description:             in.Description,
		Severity:                in.Severity,
		Status:                  StatusNew,
		TriggeringObservationID: in.TriggeringObservationID,
		Version:                 1,
		CreatedAt:               now,
		UpdatedAt:               now,
	})
	if err != nil {
		s.metrics.RecordError()
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	s.metrics.IncrementCustom(MetricAlertsCreated)

	slog.Info("Created alert",
		"alert_id", created.ID,
		"patient_id", created.PatientID,
		"severity", created.Severity,
		"title", created.Title,
	)

	event := events.NewAlertCreated(
		created.ID, created.PatientID, created.Title, created.Description,
		created.Severity, created.AlertDateTime, created.CreatedAt,
	)
	if err := s.publisher.PublishAlertCreated(ctx, event); err != nil {
		s.metrics.IncrementCustom(MetricPublishFailures)
		s.metrics.RecordError()
		slog.Error("Failed to publish AlertCreated event",
			"alert_id", created.ID,
			"patient_id", created.PatientID,
			"error", err,
		)
		return created, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	s.metrics.RecordPublished()
	s.metrics.RecordProcessed(time.Since(start))

	return created, nil
}

func validateCreate(in CreateAlert) error {
	switch {
	case strings.TrimSpace(in.PatientID) == "":
		return fmt.Errorf("%w: patient_id is required", ErrInvalidAlert)
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidAlert)
	case len(in.Title) > MaxTitleLength:
		return fmt.Errorf("%w: title cannot exceed %d characters", ErrInvalidAlert, MaxTitleLength)
	case in.Description != nil && len(*in.Description) > MaxDescriptionLength:
		return fmt.Errorf("%w: description cannot exceed %d characters", ErrInvalidAlert, MaxDescriptionLength)
	case !in.Severity.Valid():
		return fmt.Errorf("%w: invalid severity %q", ErrInvalidAlert, in.Severity)
	}
	return nil
}

// Acknowledge moves a New alert to Acknowledged. It returns false when the alert
// is in any other status.
func (s *Service) Acknowledge(ctx context.Context, id, by string) (bool, error) {
	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Status != StatusNew {
		return false, nil
	}

	now := s.now()
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = &by
	if a.AcknowledgedAt == nil {
		a.AcknowledgedAt = &now
	}
	if _, err := s.save(ctx, a, now); err != nil {
		return false, err
	}

	slog.Info("Alert acknowledged", "alert_id", id, "acknowledged_by", by)
	return true, nil
}

// Resolve moves an alert to Resolved unless it is already Resolved or Closed.
func (s *Service) Resolve(ctx context.Context, id, by string, notes *string) (bool, error) {
	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Status == StatusResolved || a.Status == StatusClosed {
		return false, nil
	}

	now := s.now()
	a.Status = StatusResolved
	a.ResolvedBy = &by
	a.ResolutionNotes = notes
	if a.ResolvedAt == nil {
		a.ResolvedAt = &now
	}
	if _, err := s.save(ctx, a, now); err != nil {
		return false, err
	}

	slog.Info("Alert resolved", "alert_id", id, "resolved_by", by)
	return true, nil
}

// Close moves a Resolved alert to Closed.
func (s *Service) Close(ctx context.Context, id, by string) (bool, error) {
	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Status != StatusResolved {
		return false, nil
	}

	now := s.now()
	a.Status = StatusClosed
	a.ClosedBy = &by
	if a.ClosedAt == nil {
		a.ClosedAt = &now
	}
	if _, err := s.save(ctx, a, now); err != nil {
		return false, err
	}

	slog.Info("Alert closed", "alert_id", id, "closed_by", by)
	return true, nil
}

// Update applies a partial update. A status change must move forward through
// the lifecycle. Entering Acknowledged, Resolved or Closed stamps the matching
// timestamp if it is not already set.
func (s *Service) Update(ctx context.Context, id string, in UpdateAlert) (*Alert, error) {
	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Version != nil && *in.Version != a.Version {
		return nil, fmt.Errorf("%w: expected version %d, current %d", ErrConcurrentUpdate, *in.Version, a.Version)
	}

	now := s.now()
	if in.Status != nil && *in.Status != a.Status {
		if !a.Status.CanTransitionTo(*in.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, *in.Status)
		}
		a.Status = *in.Status
		switch a.Status {
		case StatusAcknowledged:
			if a.AcknowledgedAt == nil {
				a.AcknowledgedAt = &now
			}
		case StatusResolved:
			if a.ResolvedAt == nil {
				a.ResolvedAt = &now
			}
		case StatusClosed:
			if a.ClosedAt == nil {
				a.ClosedAt = &now
			}
		}
	}
	if in.AcknowledgedBy != nil {
		a.AcknowledgedBy = in.AcknowledgedBy
	}
	if in.ResolvedBy != nil {
		a.ResolvedBy = in.ResolvedBy
	}
	if in.ResolutionNotes != nil {
		a.ResolutionNotes = in.ResolutionNotes
	}

	updated, err := s.save(ctx, a, now)
	if err != nil {
		return nil, err
	}
	slog.Info("Updated alert", "alert_id", id, "status", updated.Status, "version", updated.Version)
	return updated, nil
}

func (s *Service) save(ctx context.Context, a *Alert, now time.Time) (*Alert, error) {
	a.UpdatedAt = now
	updated, err := s.store.UpdateAlert(ctx, a)
	if err != nil {
		if !errors.Is(err, ErrConcurrentUpdate) && !errors.Is(err, ErrNotFound) {
			s.metrics.RecordError()
		}
		return nil, err
	}
	return updated, nil
}

// Get returns an alert by id.
func (s *Service) Get(ctx context.Context, id string) (*Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// List returns a filtered page of alerts.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	return s.store.ListAlerts(ctx, filter)
}

// ByPatient returns a patient's alerts, newest first.
func (s *Service) ByPatient(ctx context.Context, patientID string, limit, offset int) (*ListResult, error) {
	return s.store.ListAlerts(ctx, ListFilter{PatientID: patientID, Limit: limit, Offset: offset})
}

// Active returns active alerts ordered by severity, then newest first.
func (s *Service) Active(ctx context.Context, limit, offset int) (*ListResult, error) {
	return s.store.ListAlerts(ctx, ListFilter{ActiveOnly: true, SortBy: SortBySeverity, Limit: limit, Offset: offset})
}

// Critical returns active alerts of Critical severity, newest first.
func (s *Service) Critical(ctx context.Context, limit, offset int) (*ListResult, error) {
	return s.store.ListAlerts(ctx, ListFilter{
		ActiveOnly: true,
		Severity:   events.SeverityCritical,
		Limit:      limit,
		Offset:     offset,
	})
}

// DateRange returns a patient's alerts whose alert time falls within [from, to].
func (s *Service) DateRange(ctx context.Context, patientID string, from, to time.Time) (*ListResult, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: from must not be after to", ErrInvalidAlert)
	}
	return s.store.ListAlerts(ctx, ListFilter{PatientID: patientID, From: &from, To: &to})
}

// CountActive counts active alerts, for one patient when patientID is non-empty.
func (s *Service) CountActive(ctx context.Context, patientID string) (int64, error) {
	return s.store.CountActiveAlerts(ctx, patientID)
}

// Delete removes an alert.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteAlert(ctx, id); err != nil {
		return err
	}
	slog.Info("Deleted alert", "alert_id", id)
	return nil
}
