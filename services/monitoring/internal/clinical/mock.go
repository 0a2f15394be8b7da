package clinical

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockSource generates plausible clinical entries for a fixed set of patients.
// Generated entries are remembered for 24 hours so later cycles see them again,
// the way a real record store would.
type MockSource struct {
	mu       sync.Mutex
	rng      *rand.Rand
	patients []PatientRef
	perCall  int
	history  map[string][]Observation
	now      func() time.Time
}

var _ Source = (*MockSource)(nil)

// NewMockSource creates a mock source with patientCount patients adding
// perCall new entries per patient on every fetch. A zero seed uses the clock.
func NewMockSource(patientCount, perCall int, seed int64) *MockSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	patients := make([]PatientRef, patientCount)
	for i := range patients {
		patients[i] = PatientRef{
			ID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("mock-patient-%d", i+1))).String(),
			FullName: fmt.Sprintf("Mock Patient %d", i+1),
		}
	}

	return &MockSource{
		rng:      rng,
		patients: patients,
		perCall:  perCall,
		history:  make(map[string][]Observation),
		now:      time.Now,
	}
}

// ListPatients returns the generated patients.
func (m *MockSource) ListPatients(ctx context.Context) ([]PatientRef, error) {
	out := make([]PatientRef, len(m.patients))
	copy(out, m.patients)
	return out, nil
}

// ListRecentObservations appends new entries for the patient and returns every
// remembered entry in [from, to].
func (m *MockSource) ListRecentObservations(ctx context.Context, patientID string, from, to time.Time) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	for i := 0; i < m.perCall; i++ {
		m.history[patientID] = append(m.history[patientID], m.generate(patientID, now))
	}

	kept := m.history[patientID][:0]
	var result []Observation
	for _, obs := range m.history[patientID] {
		if now.Sub(obs.Timestamp) > 24*time.Hour {
			continue
		}
		kept = append(kept, obs)
		if !obs.Timestamp.Before(from) && !obs.Timestamp.After(to) {
			result = append(result, obs)
		}
	}
	m.history[patientID] = kept
	return result, nil
}

type weightedEntry struct {
	entryType EntryType
	weight    int
}

var entryDistribution = []weightedEntry{
	{EntryVitalSign, 60},
	{EntrySymptom, 15},
	{EntryTestResult, 15},
	{EntryNote, 10},
}

func (m *MockSource) pickEntryType() EntryType {
	total := 0
	for _, e := range entryDistribution {
		total += e.weight
	}
	r := m.rng.Intn(total)
	for _, e := range entryDistribution {
		if r < e.weight {
			return e.entryType
		}
		r -= e.weight
	}
	return EntryNote
}

func (m *MockSource) generate(patientID string, now time.Time) Observation {
	entryType := m.pickEntryType()
	obs := Observation{
		ID:        uuid.NewString(),
		PatientID: patientID,
		EntryType: entryType,
		Timestamp: now.Add(-time.Duration(m.rng.Intn(30)) * time.Minute),
	}

	switch entryType {
	case EntryVitalSign:
		obs.Payload = Payload{
			"Temperature":   float64(345+m.rng.Intn(50)) / 10,
			"BloodPressure": fmt.Sprintf("%d/%d", 85+m.rng.Intn(70), 55+m.rng.Intn(45)),
			"HeartRate":     float64(50 + m.rng.Intn(65)),
		}
	case EntrySymptom:
		severities := []string{"mild", "moderate", "severe", "critical"}
		obs.Payload = Payload{"Severity": severities[m.rng.Intn(len(severities))]}
	case EntryTestResult:
		statuses := []string{"normal", "normal", "abnormal", "critical"}
		obs.Payload = Payload{"Status": statuses[m.rng.Intn(len(statuses))]}
	default:
		obs.Payload = Payload{"Text": "Routine note"}
	}
	return obs
}
