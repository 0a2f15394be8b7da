package channel

import (
	"fmt"
	"strings"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// Policy decides which channel a new alert notification is created for.
type Policy string

const (
	// PolicyConsole routes everything to Console. Used in development.
	PolicyConsole Policy = "console"
	// PolicyProduction routes Critical priority to SMS when a phone number is
	// known and everything else to Email.
	PolicyProduction Policy = "production"
)

// ParsePolicy matches a policy name case-insensitively.
func ParsePolicy(v string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(v))) {
	case PolicyConsole:
		return PolicyConsole, nil
	case PolicyProduction:
		return PolicyProduction, nil
	}
	return "", fmt.Errorf("unknown channel policy %q (want console or production)", v)
}

// Select returns the channel for a notification of the given priority to a
// recipient with the given phone number.
func (p Policy) Select(priority notifications.Priority, phone string) notifications.Channel {
	if p != PolicyProduction {
		return notifications.ChannelConsole
	}
	if priority == notifications.PriorityCritical && phone != "" {
		return notifications.ChannelSMS
	}
	return notifications.ChannelEmail
}
