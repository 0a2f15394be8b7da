package dispatcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// timeLayout formats alert times in notification bodies.
const timeLayout = "2006-01-02 15:04:05"

// PriorityFor maps an alert severity to a notification priority:
// Critical to Critical, Warning to High, anything else to Normal.
func PriorityFor(s events.Severity) notifications.Priority {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "critical":
		return notifications.PriorityCritical
	case "warning":
		return notifications.PriorityHigh
	default:
		return notifications.PriorityNormal
	}
}

// Subject renders "<Severity> Alert: <title>".
func Subject(evt *events.AlertCreatedEvent) string {
	return clip(fmt.Sprintf("%s Alert: %s", evt.Severity, evt.Title), notifications.MaxSubjectLength)
}

// Message renders the notification body of an alert.
func Message(evt *events.AlertCreatedEvent) string {
	desc := evt.Title
	if evt.Description != nil && strings.TrimSpace(*evt.Description) != "" {
		desc = *evt.Description
	}
	body := fmt.Sprintf("Patient Alert: %s\n\nSeverity: %s\nTime: %s\nAlert ID: %s",
		desc,
		evt.Severity,
		evt.AlertDateTime.Format(timeLayout),
		evt.AlertID,
	)
	return clip(body, notifications.MaxMessageLength)
}

// clip truncates s to at most max bytes without splitting a rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
