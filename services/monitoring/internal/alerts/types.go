// Package alerts owns the alert lifecycle: admission of classifier candidates,
// creation with event publication, and the acknowledge/resolve/close state machine.
package alerts

import (
	"strings"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/events"
)

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusNew          Status = "New"
	StatusAcknowledged Status = "Acknowledged"
	StatusInProgress   Status = "InProgress"
	StatusResolved     Status = "Resolved"
	StatusClosed       Status = "Closed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusNew, StatusAcknowledged, StatusInProgress, StatusResolved, StatusClosed}

// ActiveStatuses are the statuses that still need attention.
var ActiveStatuses = []Status{StatusNew, StatusAcknowledged, StatusInProgress}

var transitions = map[Status][]Status{
	StatusNew:          {StatusAcknowledged, StatusInProgress, StatusResolved},
	StatusAcknowledged: {StatusInProgress, StatusResolved},
	StatusInProgress:   {StatusResolved},
	StatusResolved:     {StatusClosed},
}

// IsActive reports whether the status is New, Acknowledged or InProgress.
func (s Status) IsActive() bool {
	return s == StatusNew || s == StatusAcknowledged || s == StatusInProgress
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a forward move from s.
// Staying in the same status is not a transition.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus accepts the canonical names case-insensitively, plus "in_progress"
// and "In Progress".
func ParseStatus(v string) (Status, bool) {
	key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(v)))
	for _, st := range Statuses {
		if strings.ToLower(string(st)) == key {
			return st, true
		}
	}
	return "", false
}

// Alert is a persisted alert record.
type Alert struct {
	ID                      string          `json:"id"`
	PatientID               string          `json:"patient_id"`
	AlertDateTime           time.Time       `json:"alert_date_time"`
	Title                   string          `json:"title"`
	Description             *string         `json:"description,omitempty"`
	Severity                events.Severity `json:"severity"`
	Status                  Status          `json:"status"`
	TriggeringObservationID *string         `json:"triggering_observation_id,omitempty"`
	AcknowledgedBy          *string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt          *time.Time      `json:"acknowledged_at,omitempty"`
	ResolvedBy              *string         `json:"resolved_by,omitempty"`
	ResolvedAt              *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNotes         *string         `json:"resolution_notes,omitempty"`
	ClosedBy                *string         `json:"closed_by,omitempty"`
	ClosedAt                *time.Time      `json:"closed_at,omitempty"`
	Version                 int             `json:"version"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// IsActive reports whether the alert still needs attention.
func (a *Alert) IsActive() bool {
	return a.Status.IsActive()
}

// TriggeredBy reports whether the alert was raised by the given observation.
func (a *Alert) TriggeredBy(observationID string) bool {
	return a.TriggeringObservationID != nil && *a.TriggeringObservationID == observationID
}

// CreateAlert is the input for creating an alert.
type CreateAlert struct {
	PatientID               string          `json:"patient_id"`
	AlertDateTime           time.Time       `json:"alert_date_time"`
	Title                   string          `json:"title"`
	Description             *string         `json:"description,omitempty"`
	Severity                events.Severity `json:"severity"`
	TriggeringObservationID *string         `json:"triggering_observation_id,omitempty"`
}

// UpdateAlert is a partial update. Nil fields are left unchanged. When Version is
// set it must match the stored version.
type UpdateAlert struct {
	Status          *Status `json:"status,omitempty"`
	AcknowledgedBy  *string `json:"acknowledged_by,omitempty"`
	ResolvedBy      *string `json:"resolved_by,omitempty"`
	ResolutionNotes *string `json:"resolution_notes,omitempty"`
	Version         *int    `json:"version,omitempty"`
}

// Sort columns accepted by ListFilter.SortBy.
const (
	SortByAlertDateTime = "alert_date_time"
	SortBySeverity      = "severity"
	SortByStatus        = "status"
	SortByTitle         = "title"
)

// ListFilter narrows an alert listing. Zero values mean "no filter".
type ListFilter struct {
	PatientID      string
	Severity       events.Severity
	Status         Status
	ActiveOnly     bool
	AcknowledgedBy string
	From           *time.Time
	To             *time.Time
	SortBy         string
	SortAscending  bool
	Limit          int
	Offset         int
}

// ListResult contains a page of alerts.
type ListResult struct {
	Alerts []*Alert `json:"alerts"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}
