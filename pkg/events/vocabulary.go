package events

import "strings"

// Severity classifies how urgently an alert needs attention.
type Severity string

const (
	SeverityInformation Severity = "Information"
	SeverityWarning     Severity = "Warning"
	SeverityCritical    Severity = "Critical"
)

// Severities lists every severity in ascending order of urgency.
var Severities = []Severity{SeverityInformation, SeverityWarning, SeverityCritical}

// Rank orders severities: Information 1, Warning 2, Critical 3, unknown 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityInformation:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity matches a severity name case-insensitively.
func ParseSeverity(v string) (Severity, bool) {
	for _, s := range Severities {
		if strings.EqualFold(string(s), strings.TrimSpace(v)) {
			return s, true
		}
	}
	return "", false
}

// Role is a recipient group notified about alerts.
type Role string

const (
	RolePhysician     Role = "Physician"
	RoleNurse         Role = "Nurse"
	RoleAdministrator Role = "Administrator"
	RolePatient       Role = "Patient"
)

// DefaultRoles is used when an event carries no usable recipient roles.
func DefaultRoles() []Role {
	return []Role{RolePhysician, RoleNurse}
}

// RecipientRoles derives the ordered recipient roles for a severity.
func RecipientRoles(severity Severity) []Role {
	switch severity {
	case SeverityCritical:
		return []Role{RolePhysician, RoleNurse, RoleAdministrator}
	case SeverityWarning:
		return []Role{RolePhysician, RoleNurse}
	default:
		return []Role{RoleNurse}
	}
}
