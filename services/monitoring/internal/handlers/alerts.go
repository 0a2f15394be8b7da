package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/alerts"
)

// CreateAlertRequest represents a request to create an alert manually.
type CreateAlertRequest struct {
	PatientID               string    `json:"patient_id"`
	AlertDateTime           time.Time `json:"alert_date_time"`
	Title                   string    `json:"title"`
	Description             *string   `json:"description,omitempty"`
	Severity                string    `json:"severity"`
	TriggeringObservationID *string   `json:"triggering_observation_id,omitempty"`
}

// UpdateAlertRequest represents a partial alert update.
type UpdateAlertRequest struct {
	Status          *string `json:"status,omitempty"`
	AcknowledgedBy  *string `json:"acknowledged_by,omitempty"`
	ResolvedBy      *string `json:"resolved_by,omitempty"`
	ResolutionNotes *string `json:"resolution_notes,omitempty"`
	Version         *int    `json:"version,omitempty"` // Optimistic locking version
}

// AcknowledgeRequest is the body of PATCH /alerts/{id}/acknowledge.
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// ResolveRequest is the body of PATCH /alerts/{id}/resolve.
type ResolveRequest struct {
	ResolvedBy      string  `json:"resolved_by"`
	ResolutionNotes *string `json:"resolution_notes,omitempty"`
}

// CloseRequest is the body of PATCH /alerts/{id}/close.
type CloseRequest struct {
	ClosedBy string `json:"closed_by"`
}

// CreateAlertResponse is returned with 202 when the alert was stored but its event was not published.
type CreateAlertResponse struct {
	Alert        *alerts.Alert `json:"alert"`
	PublishError string        `json:"publish_error,omitempty"`
}

// TransitionResponse reports a successful lifecycle operation.
type TransitionResponse struct {
	AlertID string        `json:"alert_id"`
	Status  alerts.Status `json:"status"`
}

// CountResponse wraps a count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// CreateAlert creates an alert and publishes AlertCreated.
// POST /api/v1/alerts
func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req CreateAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PatientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	severity, ok := events.ParseSeverity(req.Severity)
	if !ok {
		http.Error(w, "severity must be one of: Information, Warning, Critical", http.StatusBadRequest)
		return
	}

	alert, err := h.alerts.Create(r.Context(), alerts.CreateAlert{
		PatientID:               req.PatientID,
		AlertDateTime:           req.AlertDateTime,
		Title:                   req.Title,
		Description:             req.Description,
		Severity:                severity,
		TriggeringObservationID: req.TriggeringObservationID,
	})
	if errors.Is(err, alerts.ErrPublishFailed) && alert != nil {
		writeJSON(w, http.StatusAccepted, CreateAlertResponse{Alert: alert, PublishError: err.Error()})
		return
	}
	if handleServiceError(w, err, "") {
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}

// GetAlert retrieves an alert by ID.
// GET /api/v1/alerts/{id}
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	alert, err := h.alerts.Get(r.Context(), id)
	if handleServiceError(w, err, id) {
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// ListAlerts lists alerts.
// GET /api/v1/alerts?patient_id=&severity=&status=&active=&acknowledged_by=&from=&to=&sort_by=&order=&limit=&offset=
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.alerts.List(r.Context(), filter)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseListFilter(r *http.Request) (alerts.ListFilter, error) {
	q := r.URL.Query()
	p := parsePagination(r)
	f := alerts.ListFilter{
		PatientID:      q.Get("patient_id"),
		AcknowledgedBy: q.Get("acknowledged_by"),
		Limit:          p.Limit,
		Offset:         p.Offset,
	}

	if v := q.Get("severity"); v != "" {
		sev, ok := events.ParseSeverity(v)
		if !ok {
			return f, fmt.Errorf("invalid severity: %s", v)
		}
		f.Severity = sev
	}
	if v := q.Get("status"); v != "" {
		st, ok := alerts.ParseStatus(v)
		if !ok {
			return f, fmt.Errorf("invalid status: %s", v)
		}
		f.Status = st
	}
	if v := q.Get("active"); v != "" {
		f.ActiveOnly = strings.EqualFold(v, "true") || v == "1"
	}

	var err error
	if f.From, err = parseTimeParam(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTimeParam(r, "to"); err != nil {
		return f, err
	}

	switch sortBy := strings.ToLower(q.Get("sort_by")); sortBy {
	case "", alerts.SortByAlertDateTime, "alertdatetime":
		f.SortBy = alerts.SortByAlertDateTime
	case alerts.SortBySeverity, alerts.SortByStatus, alerts.SortByTitle:
		f.SortBy = sortBy
	default:
		return f, fmt.Errorf("sort_by must be one of: alert_date_time, severity, status, title")
	}
	f.SortAscending = strings.EqualFold(q.Get("order"), "asc")

	return f, nil
}

// UpdateAlert applies a partial update.
// PUT /api/v1/alerts/{id}
func (h *Handlers) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req UpdateAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := alerts.UpdateAlert{
		AcknowledgedBy:  req.AcknowledgedBy,
		ResolvedBy:      req.ResolvedBy,
		ResolutionNotes: req.ResolutionNotes,
		Version:         req.Version,
	}
	if req.Status != nil {
		st, ok := alerts.ParseStatus(*req.Status)
		if !ok {
			http.Error(w, "invalid status: "+*req.Status, http.StatusBadRequest)
			return
		}
		in.Status = &st
	}

	alert, err := h.alerts.Update(r.Context(), id, in)
	if handleServiceError(w, err, id) {
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// DeleteAlert deletes an alert.
// DELETE /api/v1/alerts/{id}
func (h *Handlers) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if handleServiceError(w, h.alerts.Delete(r.Context(), id), id) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AcknowledgeAlert moves a New alert to Acknowledged.
// PATCH /api/v1/alerts/{id}/acknowledge
func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req AcknowledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AcknowledgedBy == "" {
		http.Error(w, "acknowledged_by is required", http.StatusBadRequest)
		return
	}

	ok, err := h.alerts.Acknowledge(r.Context(), id, req.AcknowledgedBy)
	h.writeTransition(w, r, id, "acknowledged", alerts.StatusAcknowledged, ok, err)
}

// ResolveAlert moves an alert to Resolved.
// PATCH /api/v1/alerts/{id}/resolve
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req ResolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ResolvedBy == "" {
		http.Error(w, "resolved_by is required", http.StatusBadRequest)
		return
	}

	ok, err := h.alerts.Resolve(r.Context(), id, req.ResolvedBy, req.ResolutionNotes)
	h.writeTransition(w, r, id, "resolved", alerts.StatusResolved, ok, err)
}

// CloseAlert moves a Resolved alert to Closed.
// PATCH /api/v1/alerts/{id}/close
func (h *Handlers) CloseAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req CloseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClosedBy == "" {
		http.Error(w, "closed_by is required", http.StatusBadRequest)
		return
	}

	ok, err := h.alerts.Close(r.Context(), id, req.ClosedBy)
	h.writeTransition(w, r, id, "closed", alerts.StatusClosed, ok, err)
}

func (h *Handlers) writeTransition(w http.ResponseWriter, r *http.Request, id, verb string, target alerts.Status, ok bool, err error) {
	if handleServiceError(w, err, id) {
		return
	}
	if ok {
		writeJSON(w, http.StatusOK, TransitionResponse{AlertID: id, Status: target})
		return
	}

	current, err := h.alerts.Get(r.Context(), id)
	if handleServiceError(w, err, id) {
		return
	}
	slog.Info("Alert transition rejected", "alert_id", id, "target", target, "current_status", current.Status)
	writeJSON(w, http.StatusConflict, TransitionRejected{
		Error:         fmt.Sprintf("alert cannot be %s from status %s", verb, current.Status),
		AlertID:       id,
		CurrentStatus: current.Status,
	})
}

// ListAlertsByPatient lists a patient's alerts, newest first.
// GET /api/v1/alerts/patient/{patientId}
func (h *Handlers) ListAlertsByPatient(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	result, err := h.alerts.ByPatient(r.Context(), r.PathValue("patientId"), p.Limit, p.Offset)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListAlertsByDateRange lists a patient's alerts within [from, to].
// GET /api/v1/alerts/patient/{patientId}/daterange?from=&to=
func (h *Handlers) ListAlertsByDateRange(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if from == nil || to == nil {
		http.Error(w, "from and to query parameters are required", http.StatusBadRequest)
		return
	}

	result, err := h.alerts.DateRange(r.Context(), r.PathValue("patientId"), *from, *to)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListActiveAlerts lists active alerts, most severe first.
// GET /api/v1/alerts/active
func (h *Handlers) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	result, err := h.alerts.Active(r.Context(), p.Limit, p.Offset)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListCriticalAlerts lists active critical alerts.
// GET /api/v1/alerts/critical
func (h *Handlers) ListCriticalAlerts(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	result, err := h.alerts.Critical(r.Context(), p.Limit, p.Offset)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CountActiveAlerts counts active alerts, optionally for one patient.
// GET /api/v1/alerts/count/active?patient_id=
func (h *Handlers) CountActiveAlerts(w http.ResponseWriter, r *http.Request) {
	n, err := h.alerts.CountActive(r.Context(), r.URL.Query().Get("patient_id"))
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// ListSeverities returns the alert severities.
// GET /api/v1/alerts/severities
func (h *Handlers) ListSeverities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.Severities)
}

// ListStatuses returns the alert statuses.
// GET /api/v1/alerts/statuses
func (h *Handlers) ListStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, alerts.Statuses)
}
