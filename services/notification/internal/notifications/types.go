// Package notifications owns notification records and their delivery state machine.
package notifications

import (
	"strings"
	"time"
)

// Status is the delivery state of a notification.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusSent      Status = "Sent"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every delivery status.
var Statuses = []Status{StatusPending, StatusSent, StatusFailed, StatusCancelled}

// Channel is the medium a notification is delivered through.
type Channel string

const (
	ChannelEmail   Channel = "Email"
	ChannelSMS     Channel = "SMS"
	ChannelPush    Channel = "Push"
	ChannelInApp   Channel = "InApp"
	ChannelConsole Channel = "Console"
)

// Channels lists every delivery channel.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp, ChannelConsole}

// Type classifies what a notification is about.
type Type string

const (
	TypeAlert       Type = "Alert"
	TypeAppointment Type = "Appointment"
	TypeMedication  Type = "Medication"
	TypeTestResult  Type = "TestResult"
	TypeGeneral     Type = "General"
	TypeEmergency   Type = "Emergency"
	TypeReminder    Type = "Reminder"
)

// Types lists every notification type.
var Types = []Type{TypeAlert, TypeAppointment, TypeMedication, TypeTestResult, TypeGeneral, TypeEmergency, TypeReminder}

// Priority orders notifications by urgency.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Priorities lists every priority in ascending order.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}

// RelatedEntityAlert marks notifications raised for an alert.
const RelatedEntityAlert = "Alert"

func matchName[T ~string](values []T, v string) (T, bool) {
	key := strings.ReplaceAll(strings.TrimSpace(v), "_", "")
	for _, candidate := range values {
		if strings.EqualFold(string(candidate), key) {
			return candidate, true
		}
	}
	var zero T
	return zero, false
}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(v string) (Status, bool) { return matchName(Statuses, v) }

// ParseChannel matches a channel name case-insensitively ("in_app" is accepted).
func ParseChannel(v string) (Channel, bool) { return matchName(Channels, v) }

// ParseType matches a notification type name case-insensitively.
func ParseType(v string) (Type, bool) { return matchName(Types, v) }

// ParsePriority matches a priority name case-insensitively.
func ParsePriority(v string) (Priority, bool) { return matchName(Priorities, v) }

// Notification is one delivery to one recipient.
type Notification struct {
	ID                string     `json:"id"`
	PatientID         string     `json:"patient_id"`
	RecipientType     string     `json:"recipient_type"`
	RecipientID       *string    `json:"recipient_id,omitempty"`
	RecipientEmail    *string    `json:"recipient_email,omitempty"`
	RecipientPhone    *string    `json:"recipient_phone,omitempty"`
	NotificationType  Type       `json:"notification_type"`
	Channel           Channel    `json:"channel"`
	Subject           string     `json:"subject"`
	Message           string     `json:"message"`
	Status            Status     `json:"status"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	RetryCount        int        `json:"retry_count"`
	RelatedEntityID   *string    `json:"related_entity_id,omitempty"`
	RelatedEntityType *string    `json:"related_entity_type,omitempty"`
	Priority          Priority   `json:"priority"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CreateNotification holds the caller-supplied fields of a new notification.
type CreateNotification struct {
	PatientID         string
	RecipientType     string
	RecipientID       *string
	RecipientEmail    *string
	RecipientPhone    *string
	NotificationType  Type
	Channel           Channel
	Subject           string
	Message           string
	RelatedEntityID   *string
	RelatedEntityType *string
	Priority          Priority
}

// ListFilter selects notifications. Zero values do not filter.
type ListFilter struct {
	PatientID         string
	RecipientType     string
	NotificationType  Type
	Channel           Channel
	Status            Status
	Priority          Priority
	RelatedEntityType string
	From              *time.Time
	To                *time.Time
	Limit             int
	Offset            int
}

// ListResult is one page of notifications.
type ListResult struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	Limit         int             `json:"limit"`
	Offset        int             `json:"offset"`
}
