// Package events defines the alert events exchanged between the monitoring
// and notification services, together with the vocabulary both sides share.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is stamped on every published event.
const SchemaVersion = 1

const (
	// DefaultTopic carries all platform domain events.
	DefaultTopic = "patient-recovery-events"
	// SourceMonitoring is the routing-key prefix for events emitted by the monitoring service.
	SourceMonitoring = "monitoring"
	// EventTypeAlertCreated is the event type of AlertCreatedEvent.
	EventTypeAlertCreated = "AlertCreated"
)

// RoutingKeyAlertCreated is the routing key of AlertCreatedEvent.
var RoutingKeyAlertCreated = RoutingKey(SourceMonitoring, EventTypeAlertCreated)

// RoutingKey builds a routing key of the form <service>.<eventtype>, lowercased.
func RoutingKey(service, eventType string) string {
	return strings.ToLower(service + "." + eventType)
}

// AlertCreatedEvent is published once for every persisted alert.
type AlertCreatedEvent struct {
	AlertID        string    `json:"alertId"`
	PatientID      string    `json:"patientId"`
	Title          string    `json:"title"`
	Description    *string   `json:"description,omitempty"`
	Severity       Severity  `json:"severity"`
	AlertDateTime  time.Time `json:"alertDateTime"`
	CreatedAt      time.Time `json:"createdAt"`
	RecipientRoles []Role    `json:"recipientRoles"`
	SchemaVersion  int       `json:"schemaVersion"`

	// RolesDefaulted is set by Decode when recipientRoles was missing or unusable.
	RolesDefaulted bool `json:"-"`
}

// Encode serializes the event to JSON.
func (e *AlertCreatedEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert created event: %w", err)
	}
	return data, nil
}

// wireAlertCreated mirrors AlertCreatedEvent with recipientRoles left raw.
type wireAlertCreated struct {
	AlertID        string          `json:"alertId"`
	PatientID      string          `json:"patientId"`
	Title          string          `json:"title"`
	Description    *string         `json:"description"`
	Severity       Severity        `json:"severity"`
	AlertDateTime  time.Time       `json:"alertDateTime"`
	CreatedAt      time.Time       `json:"createdAt"`
	RecipientRoles json.RawMessage `json:"recipientRoles"`
	SchemaVersion  int             `json:"schemaVersion"`
}

// Decode parses an AlertCreatedEvent. The envelope must be valid JSON with an
// alertId; recipientRoles is decoded leniently and falls back to DefaultRoles.
func Decode(data []byte) (*AlertCreatedEvent, error) {
	var w wireAlertCreated
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert created event: %w", err)
	}
	if w.AlertID == "" {
		return nil, fmt.Errorf("alert created event is missing alertId")
	}

	evt := &AlertCreatedEvent{
		AlertID:       w.AlertID,
		PatientID:     w.PatientID,
		Title:         w.Title,
		Description:   w.Description,
		Severity:      w.Severity,
		AlertDateTime: w.AlertDateTime,
		CreatedAt:     w.CreatedAt,
		SchemaVersion: w.SchemaVersion,
	}

	roles, ok := parseRoles(w.RecipientRoles)
	if !ok {
		roles = DefaultRoles()
		evt.RolesDefaulted = true
	}
	evt.RecipientRoles = roles
	return evt, nil
}

// parseRoles accepts a JSON array of names, or a string holding one.
func parseRoles(raw json.RawMessage) ([]Role, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, false
		}
		if err := json.Unmarshal([]byte(encoded), &names); err != nil {
			return nil, false
		}
	}

	roles := make([]Role, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			roles = append(roles, Role(n))
		}
	}
	if len(roles) == 0 {
		return nil, false
	}
	return roles, true
}

// NewAlertCreated builds the event for a newly persisted alert.
// Recipient roles are derived from severity.
func NewAlertCreated(alertID, patientID, title string, description *string, severity Severity, alertDateTime, createdAt time.Time) *AlertCreatedEvent {
	return &AlertCreatedEvent{
		AlertID:        alertID,
		PatientID:      patientID,
		Title:          title,
		Description:    description,
		Severity:       severity,
		AlertDateTime:  alertDateTime,
		CreatedAt:      createdAt,
		RecipientRoles: RecipientRoles(severity),
		SchemaVersion:  SchemaVersion,
	}
}
