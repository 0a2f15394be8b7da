// Package router provides HTTP routing configuration for the monitoring service API.
// It sets up routes and applies middleware like CORS and request metrics.
package router

import (
	"net/http"

	"github.com/afikmenashe/patient-alerting/pkg/metrics"
	"github.com/afikmenashe/patient-alerting/pkg/middleware"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/handlers"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux       *http.ServeMux
	handlers  *handlers.Handlers
	collector *metrics.Collector
}

// NewRouter creates a new router with all routes configured.
// collector may be nil, in which case requests are not counted.
func NewRouter(h *handlers.Handlers, collector *metrics.Collector) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		handlers:  h,
		collector: collector,
	}
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler with CORS and request metrics applied.
// The health and metrics endpoints are not counted.
func (r *Router) Handler() http.Handler {
	counted := middleware.Metrics(r.collector, "/health", "/api/v1/services/metrics")
	return middleware.CORS(counted(r.mux))
}
