package clinical

import (
	"context"
	"time"
)

// Source is the read-only view of the patient and clinical-record collaborators.
type Source interface {
	// ListPatients returns every patient that should be monitored.
	ListPatients(ctx context.Context) ([]PatientRef, error)

	// ListRecentObservations returns the patient's observations recorded in [from, to].
	ListRecentObservations(ctx context.Context, patientID string, from, to time.Time) ([]Observation, error)
}
