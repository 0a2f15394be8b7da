// Package clinical models the clinical observations the monitoring service
// reads from the clinical-record collaborator.
package clinical

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntryType is the kind of clinical entry.
type EntryType string

const (
	EntryVitalSign   EntryType = "VitalSign"
	EntrySymptom     EntryType = "Symptom"
	EntryObservation EntryType = "Observation"
	EntryMedication  EntryType = "Medication"
	EntryProcedure   EntryType = "Procedure"
	EntryTestResult  EntryType = "TestResult"
	EntryNote        EntryType = "Note"
	EntryDiagnosis   EntryType = "Diagnosis"
	EntryTreatment   EntryType = "Treatment"
	EntryAllergy     EntryType = "Allergy"
)

var entryTypes = []EntryType{
	EntryVitalSign, EntrySymptom, EntryObservation, EntryMedication, EntryProcedure,
	EntryTestResult, EntryNote, EntryDiagnosis, EntryTreatment, EntryAllergy,
}

// Normalize maps spellings such as "vital_sign" or "VITALSIGN" to the canonical
// constant. Unknown types are returned unchanged.
func (t EntryType) Normalize() EntryType {
	key := entryKey(string(t))
	for _, et := range entryTypes {
		if entryKey(string(et)) == key {
			return et
		}
	}
	return t
}

func entryKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

// PatientRef identifies a monitored patient.
type PatientRef struct {
	ID       string `json:"id"`
	FullName string `json:"fullName,omitempty"`
}

// Observation is a single timestamped clinical data point. It is read-only to the core.
type Observation struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patientId"`
	EntryType EntryType `json:"entryType"`
	Timestamp time.Time `json:"entryDateTime"`
	Payload   Payload   `json:"data,omitempty"`
}

// UnmarshalJSON accepts timestamps with or without a zone offset; zone-less
// values are taken as UTC.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        string    `json:"id"`
		PatientID string    `json:"patientId"`
		EntryType EntryType `json:"entryType"`
		Timestamp string    `json:"entryDateTime"`
		Payload   Payload   `json:"data"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts, err := ParseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	*o = Observation{
		ID:        aux.ID,
		PatientID: aux.PatientID,
		EntryType: aux.EntryType,
		Timestamp: ts,
		Payload:   aux.Payload,
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the timestamp formats produced by the clinical-record service.
func ParseTimestamp(v string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid entry timestamp: %q", v)
}

// Payload is the semi-structured body of an observation. Keys are matched
// case-insensitively and every accessor reports whether a usable value exists.
type Payload map[string]any

// UnmarshalJSON accepts an object, a string holding an object, or null.
// Anything else yields an empty payload rather than an error.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err == nil {
		*p = m
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			*p = m
			return nil
		}
	}
	*p = nil
	return nil
}

func (p Payload) lookup(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	if v, ok := p[key]; ok {
		return v, v != nil
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, v != nil
		}
	}
	return nil, false
}

// String returns the value as text. Numbers are formatted without trailing zeros.
func (p Payload) String(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

// Float returns a numeric value or a numeric string as float64.
func (p Payload) Float(key string) (float64, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns an integral value. Fractional numbers are rejected.
func (p Payload) Int(key string) (int, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	case json.Number:
		n, err := strconv.Atoi(val.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		return n, err == nil
	}
	return 0, false
}
