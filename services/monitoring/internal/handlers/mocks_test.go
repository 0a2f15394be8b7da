package handlers

import (
	"context"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/metrics"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/alerts"
)

// mockAlertService is a configurable AlertService. Unset funcs return zero values.
type mockAlertService struct {
	createFunc      func(in alerts.CreateAlert) (*alerts.Alert, error)
	getFunc         func(id string) (*alerts.Alert, error)
	listFunc        func(f alerts.ListFilter) (*alerts.ListResult, error)
	byPatientFunc   func(patientID string, limit, offset int) (*alerts.ListResult, error)
	activeFunc      func(limit, offset int) (*alerts.ListResult, error)
	criticalFunc    func(limit, offset int) (*alerts.ListResult, error)
	dateRangeFunc   func(patientID string, from, to time.Time) (*alerts.ListResult, error)
	countFunc       func(patientID string) (int64, error)
	acknowledgeFunc func(id, by string) (bool, error)
	resolveFunc     func(id, by string, notes *string) (bool, error)
	closeFunc       func(id, by string) (bool, error)
	updateFunc      func(id string, in alerts.UpdateAlert) (*alerts.Alert, error)
	deleteFunc      func(id string) error

	lastFilter alerts.ListFilter
}

func (m *mockAlertService) Create(ctx context.Context, in alerts.CreateAlert) (*alerts.Alert, error) {
	if m.createFunc != nil {
		return m.createFunc(in)
	}
	return &alerts.Alert{ID: "a-1", PatientID: in.PatientID, Title: in.Title, Severity: in.Severity, Status: alerts.StatusNew}, nil
}

func (m *mockAlertService) Get(ctx context.Context, id string) (*alerts.Alert, error) {
	if m.getFunc != nil {
		return m.getFunc(id)
	}
	return &alerts.Alert{ID: id, Status: alerts.StatusNew}, nil
}

func (m *mockAlertService) List(ctx context.Context, f alerts.ListFilter) (*alerts.ListResult, error) {
	m.lastFilter = f
	if m.listFunc != nil {
		return m.listFunc(f)
	}
	return &alerts.ListResult{Alerts: []*alerts.Alert{}, Limit: f.Limit, Offset: f.Offset}, nil
}

func (m *mockAlertService) ByPatient(ctx context.Context, patientID string, limit, offset int) (*alerts.ListResult, error) {
	if m.byPatientFunc != nil {
		return m.byPatientFunc(patientID, limit, offset)
	}
	return &alerts.ListResult{Alerts: []*alerts.Alert{}}, nil
}

func (m *mockAlertService) Active(ctx context.Context, limit, offset int) (*alerts.ListResult, error) {
	if m.activeFunc != nil {
		return m.activeFunc(limit, offset)
	}
	return &alerts.ListResult{Alerts: []*alerts.Alert{}}, nil
}

func (m *mockAlertService) Critical(ctx context.Context, limit, offset int) (*alerts.ListResult, error) {
	if m.criticalFunc != nil {
		return m.criticalFunc(limit, offset)
	}
	return &alerts.ListResult{Alerts: []*alerts.Alert{}}, nil
}

func (m *mockAlertService) DateRange(ctx context.Context, patientID string, from, to time.Time) (*alerts.ListResult, error) {
	if m.dateRangeFunc != nil {
		return m.dateRangeFunc(patientID, from, to)
	}
	return &alerts.ListResult{Alerts: []*alerts.Alert{}}, nil
}

func (m *mockAlertService) CountActive(ctx context.Context, patientID string) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(patientID)
	}
	return 0, nil
}

func (m *mockAlertService) Acknowledge(ctx context.Context, id, by string) (bool, error) {
	if m.acknowledgeFunc != nil {
		return m.acknowledgeFunc(id, by)
	}
	return true, nil
}

func (m *mockAlertService) Resolve(ctx context.Context, id, by string, notes *string) (bool, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(id, by, notes)
	}
	return true, nil
}

func (m *mockAlertService) Close(ctx context.Context, id, by string) (bool, error) {
	if m.closeFunc != nil {
		return m.closeFunc(id, by)
	}
	return true, nil
}

func (m *mockAlertService) Update(ctx context.Context, id string, in alerts.UpdateAlert) (*alerts.Alert, error) {
	if m.updateFunc != nil {
		return m.updateFunc(id, in)
	}
	return &alerts.Alert{ID: id}, nil
}

func (m *mockAlertService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

// mockMetricsReader returns canned service metrics.
type mockMetricsReader struct {
	all    map[string]*metrics.ServiceMetrics
	allErr error
	one    *metrics.ServiceMetrics
	oneErr error
}

func (m *mockMetricsReader) GetServiceMetrics(ctx context.Context, name string) (*metrics.ServiceMetrics, error) {
	return m.one, m.oneErr
}

func (m *mockMetricsReader) GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error) {
	if m.allErr != nil {
		return nil, m.allErr
	}
	out := make(map[string]*metrics.ServiceMetrics, len(m.all))
	for k, v := range m.all {
		out[k] = v
	}
	return out, nil
}
