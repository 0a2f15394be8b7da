// Package classifier maps clinical observations to alert candidates.
// Classification is pure: no I/O, no clock reads, no shared state.
package classifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/clinical"
)

// FreshnessWindow is how old an observation may be and still be evaluated.
const FreshnessWindow = time.Hour

// Thresholds. Boundary values trigger.
const (
	HighTemperatureC = 38.0
	LowTemperatureC  = 35.0
	HighSystolic     = 140
	HighDiastolic    = 90
	LowSystolic      = 90
	LowDiastolic     = 60
	HighHeartRate    = 100
	LowHeartRate     = 60
)

// Payload keys read by the rules.
const (
	KeyTemperature   = "Temperature"
	KeyBloodPressure = "BloodPressure"
	KeyHeartRate     = "HeartRate"
	KeySeverity      = "Severity"
	KeyStatus        = "Status"
)

// Alert titles.
const (
	TitleHighTemperature   = "High Temperature"
	TitleLowTemperature    = "Low Temperature"
	TitleHighBloodPressure = "High Blood Pressure"
	TitleLowBloodPressure  = "Low Blood Pressure"
	TitleHighHeartRate     = "High Heart Rate"
	TitleLowHeartRate      = "Low Heart Rate"
	TitleSevereSymptom     = "Severe Symptom"
	TitleAbnormalTest      = "Abnormal Test Results"
)

// Candidate is a proposed alert that has not been admitted yet.
type Candidate struct {
	PatientID     string
	ObservationID string
	Title         string
	Description   string
	Severity      events.Severity
	OccurredAt    time.Time
}

// Classify evaluates one observation at time now. Each check yields at most one
// candidate and a malformed field only disables its own check.
func Classify(obs clinical.Observation, now time.Time) []Candidate {
	if obs.Payload == nil {
		return nil
	}
	if now.Sub(obs.Timestamp) > FreshnessWindow {
		return nil
	}

	newCandidate := func(title, description string, severity events.Severity) Candidate {
		return Candidate{
			PatientID:     obs.PatientID,
			ObservationID: obs.ID,
			Title:         title,
			Description:   description,
			Severity:      severity,
			OccurredAt:    obs.Timestamp,
		}
	}

	var out []Candidate
	add := func(c Candidate, ok bool) {
		if ok {
			out = append(out, c)
		}
	}

	switch obs.EntryType.Normalize() {
	case clinical.EntryVitalSign:
		add(checkTemperature(obs.Payload, newCandidate))
		add(checkBloodPressure(obs.Payload, newCandidate))
		add(checkHeartRate(obs.Payload, newCandidate))
	case clinical.EntrySymptom:
		add(checkSymptom(obs.Payload, newCandidate))
	case clinical.EntryTestResult:
		add(checkTestResult(obs.Payload, newCandidate))
	}
	return out
}

type candidateFunc func(title, description string, severity events.Severity) Candidate

func checkTemperature(p clinical.Payload, newCandidate candidateFunc) (Candidate, bool) {
	temp, ok := p.Float(KeyTemperature)
	if !ok {
		return Candidate{}, false
	}
	switch {
	case temp >= HighTemperatureC:
		return newCandidate(TitleHighTemperature,
			fmt.Sprintf("Patient temperature (%v°C) indicates fever", temp),
			events.SeverityCritical), true
	case temp <= LowTemperatureC:
		return newCandidate(TitleLowTemperature,
			fmt.Sprintf("Patient temperature (%v°C) is below normal range", temp),
			events.SeverityWarning), true
	}
	return Candidate{}, false
}

func checkBloodPressure(p clinical.Payload, newCandidate candidateFunc) (Candidate, bool) {
	raw, ok := p.String(KeyBloodPressure)
	if !ok {
		return Candidate{}, false
	}
	systolic, diastolic, ok := ParseBloodPressure(raw)
	if !ok {
		return Candidate{}, false
	}
	switch {
	case systolic >= HighSystolic || diastolic >= HighDiastolic:
		return newCandidate(TitleHighBloodPressure,
			fmt.Sprintf("Patient blood pressure (%s) exceeds normal range", raw),
			events.SeverityWarning), true
	case systolic <= LowSystolic || diastolic <= LowDiastolic:
		return newCandidate(TitleLowBloodPressure,
			fmt.Sprintf("Patient blood pressure (%s) is below normal range", raw),
			events.SeverityWarning), true
	}
	return Candidate{}, false
}

func checkHeartRate(p clinical.Payload, newCandidate candidateFunc) (Candidate, bool) {
	hr, ok := p.Int(KeyHeartRate)
	if !ok {
		return Candidate{}, false
	}
	switch {
	case hr >= HighHeartRate:
		return newCandidate(TitleHighHeartRate,
			fmt.Sprintf("Patient heart rate (%d bpm) is elevated", hr),
			events.SeverityWarning), true
	case hr <= LowHeartRate:
		return newCandidate(TitleLowHeartRate,
			fmt.Sprintf("Patient heart rate (%d bpm) is below normal range", hr),
			events.SeverityWarning), true
	}
	return Candidate{}, false
}

func checkSymptom(p clinical.Payload, newCandidate candidateFunc) (Candidate, bool) {
	severity, ok := p.String(KeySeverity)
	if !ok {
		return Candidate{}, false
	}
	switch strings.ToLower(severity) {
	case "severe", "critical":
		return newCandidate(TitleSevereSymptom,
			"Patient reported severe symptoms requiring immediate attention",
			events.SeverityCritical), true
	}
	return Candidate{}, false
}

func checkTestResult(p clinical.Payload, newCandidate candidateFunc) (Candidate, bool) {
	status, ok := p.String(KeyStatus)
	if !ok {
		return Candidate{}, false
	}
	switch strings.ToLower(status) {
	case "abnormal", "critical":
		return newCandidate(TitleAbnormalTest,
			"Patient test results show abnormal values requiring review",
			events.SeverityWarning), true
	}
	return Candidate{}, false
}

// ParseBloodPressure parses "S/D" into integer systolic and diastolic values.
func ParseBloodPressure(v string) (systolic, diastolic int, ok bool) {
	parts := strings.Split(v, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	s, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	d, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return s, d, true
}
