package clinical

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSource_ListPatients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/Patients" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"P1","fullName":"John Doe"},{"id":"P2","fullName":"Jane Roe"}]`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.URL, 5*time.Second)
	patients, err := src.ListPatients(context.Background())
	if err != nil {
		t.Fatalf("ListPatients() error = %v", err)
	}
	if len(patients) != 2 || patients[0].ID != "P1" || patients[1].FullName != "Jane Roe" {
		t.Errorf("ListPatients() = %+v", patients)
	}
}

func TestHTTPSource_ListPatients_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.URL, 5*time.Second)
	if _, err := src.ListPatients(context.Background()); err == nil {
		t.Error("ListPatients() expected error for 401")
	}
}

func TestHTTPSource_ListRecentObservations(t *testing.T) {
	from := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ClinicalRecords/patient/P1/daterange":
			if got := r.URL.Query().Get("fromDate"); got != "2026-03-01T08:00:00" {
				t.Errorf("fromDate = %s", got)
			}
			if got := r.URL.Query().Get("toDate"); got != "2026-03-02T08:00:00" {
				t.Errorf("toDate = %s", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"id":"o1","patientId":"P1","entryType":"VitalSign","entryDateTime":"2026-03-02T07:30:00","data":{"Temperature":38.5}},
				{"id":"o2","patientId":"P1","entryType":"Symptom","entryDateTime":"not-a-date","data":{"Severity":"severe"}},
				{"id":"o3","entryType":"TestResult","entryDateTime":"2026-03-02T07:45:00Z","data":"{\"Status\":\"abnormal\"}"}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.URL, 5*time.Second)
	ctx := context.Background()

	obs, err := src.ListRecentObservations(ctx, "P1", from, to)
	if err != nil {
		t.Fatalf("ListRecentObservations() error = %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("ListRecentObservations() returned %d entries, want 2 (malformed entry skipped)", len(obs))
	}
	if obs[1].PatientID != "P1" {
		t.Errorf("missing patientId should default to the queried patient, got %q", obs[1].PatientID)
	}
	if status, ok := obs[1].Payload.String("Status"); !ok || status != "abnormal" {
		t.Errorf("Payload.String(Status) = %q, %v", status, ok)
	}

	none, err := src.ListRecentObservations(ctx, "P404", from, to)
	if err != nil {
		t.Fatalf("ListRecentObservations() 404 error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListRecentObservations() 404 returned %d entries", len(none))
	}
}
