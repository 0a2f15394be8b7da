package clinical

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// queryTimeLayout is the zone-less layout the clinical-record service expects.
const queryTimeLayout = "2006-01-02T15:04:05"

// HTTPSource reads patients and clinical records over HTTP.
type HTTPSource struct {
	patients *resty.Client
	records  *resty.Client
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source for the patient-management and clinical-record services.
func NewHTTPSource(patientsURL, recordsURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		patients: newClient(patientsURL, timeout),
		records:  newClient(recordsURL, timeout),
	}
}

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")
}

// ListPatients fetches all patients from GET /api/Patients.
func (s *HTTPSource) ListPatients(ctx context.Context) ([]PatientRef, error) {
	var patients []PatientRef
	resp, err := s.patients.R().
		SetContext(ctx).
		SetResult(&patients).
		ForceContentType("application/json").
		Get("/api/Patients")
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to list patients: status %d", resp.StatusCode())
	}
	return patients, nil
}

// ListRecentObservations fetches the patient's entries in [from, to].
// A 404 means the patient has no entries. Entries that cannot be decoded are
// skipped so one bad record does not hide the rest.
func (s *HTTPSource) ListRecentObservations(ctx context.Context, patientID string, from, to time.Time) ([]Observation, error) {
	var raw []json.RawMessage
	resp, err := s.records.R().
		SetContext(ctx).
		SetPathParam("patientId", patientID).
		SetQueryParams(map[string]string{
			"fromDate": from.UTC().Format(queryTimeLayout),
			"toDate":   to.UTC().Format(queryTimeLayout),
		}).
		SetResult(&raw).
		ForceContentType("application/json").
		Get("/api/ClinicalRecords/patient/{patientId}/daterange")
	if err != nil {
		return nil, fmt.Errorf("failed to list clinical entries for patient %s: %w", patientID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		slog.Debug("No recent clinical entries found", "patient_id", patientID)
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to list clinical entries for patient %s: status %d", patientID, resp.StatusCode())
	}

	observations := make([]Observation, 0, len(raw))
	for _, r := range raw {
		var obs Observation
		if err := json.Unmarshal(r, &obs); err != nil {
			slog.Warn("Skipping malformed clinical entry", "patient_id", patientID, "error", err)
			continue
		}
		if obs.PatientID == "" {
			obs.PatientID = patientID
		}
		observations = append(observations, obs)
	}
	return observations, nil
}
