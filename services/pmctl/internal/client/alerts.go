package client

import (
	"context"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/metrics"
)

// Alert mirrors the monitoring service alert representation.
type Alert struct {
	ID                      string     `json:"id"`
	PatientID               string     `json:"patient_id"`
	AlertDateTime           time.Time  `json:"alert_date_time"`
	Title                   string     `json:"title"`
	Description             *string    `json:"description,omitempty"`
	Severity                string     `json:"severity"`
	Status                  string     `json:"status"`
	TriggeringObservationID *string    `json:"triggering_observation_id,omitempty"`
	AcknowledgedBy          *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt          *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedBy              *string    `json:"resolved_by,omitempty"`
	ResolvedAt              *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes         *string    `json:"resolution_notes,omitempty"`
	ClosedBy                *string    `json:"closed_by,omitempty"`
	ClosedAt                *time.Time `json:"closed_at,omitempty"`
	Version                 int        `json:"version"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// AlertList is one page of alerts.
type AlertList struct {
	Alerts []*Alert `json:"alerts"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// AlertFilter selects alerts for ListAlerts. Empty fields are not sent.
type AlertFilter struct {
	PatientID  string
	Severity   string
	Status     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// AlertTransition is the result of a lifecycle operation.
type AlertTransition struct {
	AlertID string `json:"alert_id"`
	Status  string `json:"status"`
}

// ServiceMetricsList is the aggregated metrics of all known services.
type ServiceMetricsList struct {
	Services      map[string]*metrics.ServiceMetrics `json:"services"`
	KnownServices []string                           `json:"known_services"`
}

// ListAlerts returns a filtered page of alerts.
func (c *Client) ListAlerts(ctx context.Context, f AlertFilter) (*AlertList, error) {
	params := paginationParams(f.Limit, f.Offset)
	if f.PatientID != "" {
		params["patient_id"] = f.PatientID
	}
	if f.Severity != "" {
		params["severity"] = f.Severity
	}
	if f.Status != "" {
		params["status"] = f.Status
	}
	if f.ActiveOnly {
		params["active"] = "true"
	}

	var result AlertList
	resp, err := c.monitoring.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get("/api/v1/alerts")
	if err := checkResponse(resp, err, "list alerts"); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAlert returns one alert.
func (c *Client) GetAlert(ctx context.Context, id string) (*Alert, error) {
	var alert Alert
	resp, err := c.monitoring.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&alert).
		Get("/api/v1/alerts/{id}")
	if err := checkResponse(resp, err, "get alert "+id); err != nil {
		return nil, err
	}
	return &alert, nil
}

// AcknowledgeAlert moves a New alert to Acknowledged.
func (c *Client) AcknowledgeAlert(ctx context.Context, id, by string) (*AlertTransition, error) {
	return c.transition(ctx, id, "acknowledge", map[string]any{"acknowledged_by": by})
}

// ResolveAlert moves an alert to Resolved. Empty notes are omitted.
func (c *Client) ResolveAlert(ctx context.Context, id, by, notes string) (*AlertTransition, error) {
	body := map[string]any{"resolved_by": by}
	if notes != "" {
		body["resolution_notes"] = notes
	}
	return c.transition(ctx, id, "resolve", body)
}

// CloseAlert moves a Resolved alert to Closed.
func (c *Client) CloseAlert(ctx context.Context, id, by string) (*AlertTransition, error) {
	return c.transition(ctx, id, "close", map[string]any{"closed_by": by})
}

func (c *Client) transition(ctx context.Context, id, action string, body map[string]any) (*AlertTransition, error) {
	var result AlertTransition
	resp, err := c.monitoring.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(body).
		SetResult(&result).
		Patch("/api/v1/alerts/{id}/" + action)
	if err := checkResponse(resp, err, action+" alert "+id); err != nil {
		return nil, err
	}
	return &result, nil
}

// CountActiveAlerts counts active alerts, for one patient when patientID is set.
func (c *Client) CountActiveAlerts(ctx context.Context, patientID string) (int64, error) {
	var result struct {
		Count int64 `json:"count"`
	}
	req := c.monitoring.R().SetContext(ctx).SetResult(&result)
	if patientID != "" {
		req.SetQueryParam("patient_id", patientID)
	}
	resp, err := req.Get("/api/v1/alerts/count/active")
	if err := checkResponse(resp, err, "count active alerts"); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// ServiceMetrics returns the metrics reported by all services.
func (c *Client) ServiceMetrics(ctx context.Context) (*ServiceMetricsList, error) {
	var result ServiceMetricsList
	resp, err := c.monitoring.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/api/v1/services/metrics")
	if err := checkResponse(resp, err, "get service metrics"); err != nil {
		return nil, err
	}
	return &result, nil
}
