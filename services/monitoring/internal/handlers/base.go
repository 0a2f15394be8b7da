// Package handlers provides HTTP handlers for the monitoring service admin API.
package handlers

import (
	"context"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/metrics"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/alerts"
)

// AlertService is the alert lifecycle API the handlers drive.
type AlertService interface {
	Create(ctx context.Context, in alerts.CreateAlert) (*alerts.Alert, error)
	Get(ctx context.Context, id string) (*alerts.Alert, error)
	List(ctx context.Context, filter alerts.ListFilter) (*alerts.ListResult, error)
	ByPatient(ctx context.Context, patientID string, limit, offset int) (*alerts.ListResult, error)
	Active(ctx context.Context, limit, offset int) (*alerts.ListResult, error)
	Critical(ctx context.Context, limit, offset int) (*alerts.ListResult, error)
	DateRange(ctx context.Context, patientID string, from, to time.Time) (*alerts.ListResult, error)
	CountActive(ctx context.Context, patientID string) (int64, error)
	Acknowledge(ctx context.Context, id, by string) (bool, error)
	Resolve(ctx context.Context, id, by string, notes *string) (bool, error)
	Close(ctx context.Context, id, by string) (bool, error)
	Update(ctx context.Context, id string, in alerts.UpdateAlert) (*alerts.Alert, error)
	Delete(ctx context.Context, id string) error
}

// MetricsReader reads per-service metrics snapshots.
type MetricsReader interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error)
	GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error)
}

var _ AlertService = (*alerts.Service)(nil)
var _ MetricsReader = (*metrics.Reader)(nil)

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	alerts        AlertService
	metricsReader MetricsReader
}

// NewHandlers creates a new handlers instance. metricsReader may be nil when
// Redis is not configured.
func NewHandlers(svc AlertService, metricsReader MetricsReader) *Handlers {
	return &Handlers{
		alerts:        svc,
		metricsReader: metricsReader,
	}
}
