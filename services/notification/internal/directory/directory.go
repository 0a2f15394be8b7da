// Package directory resolves recipient roles to contact details.
package directory

import (
	"context"
	"strings"

	"github.com/afikmenashe/patient-alerting/pkg/events"
)

// Contact is where notifications for a role are delivered.
type Contact struct {
	RecipientID string
	Email       string
	Phone       string
}

// Directory looks up the contact for a recipient role of a patient.
type Directory interface {
	Lookup(ctx context.Context, patientID string, role events.Role) (Contact, error)
}

// DefaultContact is returned for roles with no configured contact.
var DefaultContact = Contact{
	RecipientID: "unknown",
	Email:       "support@hospital.com",
	Phone:       "+998900000000",
}

// Static is a fixed role to contact table. Role names match case-insensitively.
type Static struct {
	contacts map[string]Contact
	fallback Contact
}

// NewStatic builds a static directory. Missing roles resolve to DefaultContact.
func NewStatic(contacts map[events.Role]Contact) *Static {
	s := &Static{
		contacts: make(map[string]Contact, len(contacts)),
		fallback: DefaultContact,
	}
	for role, c := range contacts {
		s.contacts[strings.ToLower(string(role))] = c
	}
	return s
}

// NewDefault returns the built-in hospital contact table.
func NewDefault() *Static {
	return NewStatic(map[events.Role]Contact{
		events.RolePhysician:     {RecipientID: "physician-001", Email: "michael.johnson@hospital.com", Phone: "+998901234567"},
		events.RoleNurse:         {RecipientID: "nurse-001", Email: "jane.smith@hospital.com", Phone: "+998907654321"},
		events.RolePatient:       {RecipientID: "patient-001", Email: "john.doe@patient.com", Phone: "+998901111111"},
		events.RoleAdministrator: {RecipientID: "admin-001", Email: "admin@hospital.com", Phone: "+998909999999"},
	})
}

// Lookup never fails; unknown roles get the fallback contact.
func (s *Static) Lookup(_ context.Context, _ string, role events.Role) (Contact, error) {
	if c, ok := s.contacts[strings.ToLower(strings.TrimSpace(string(role)))]; ok {
		return c, nil
	}
	return s.fallback, nil
}

var _ Directory = (*Static)(nil)
