// Package router provides HTTP routing for the notification service admin API.
package router

import (
	"net/http"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/metrics"
	"github.com/afikmenashe/patient-alerting/pkg/middleware"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/handlers"
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
func (r *Router) Handler() http.Handler {
	counted := middleware.Metrics(r.collector, "/health")
	return middleware.CORS(counted(r.mux))
}

func (r *Router) setupRoutes() {
	h := r.handlers

	r.mux.HandleFunc("GET /api/v1/notifications", h.ListNotifications)
	r.mux.HandleFunc("POST /api/v1/notifications", h.CreateNotification)
	r.mux.HandleFunc("GET /api/v1/notifications/{id}", h.GetNotification)

	// Delivery
	r.mux.HandleFunc("POST /api/v1/notifications/{id}/send", h.SendNotification)
	r.mux.HandleFunc("POST /api/v1/notifications/{id}/retry", h.RetryNotification)
	r.mux.HandleFunc("POST /api/v1/notifications/{id}/cancel", h.CancelNotification)

	// Queries
	r.mux.HandleFunc("GET /api/v1/notifications/patient/{patientId}", h.ListNotificationsByPatient)
	r.mux.HandleFunc("GET /api/v1/notifications/failed", h.ListFailedNotifications)
	r.mux.HandleFunc("GET /api/v1/notifications/count/pending", h.CountPendingNotifications)
	r.mux.HandleFunc("GET /api/v1/notifications/inbox/{recipientId}", h.GetInbox)

	// Enums
	r.mux.HandleFunc("GET /api/v1/notifications/channels", h.ListChannels)
	r.mux.HandleFunc("GET /api/v1/notifications/types", h.ListTypes)
	r.mux.HandleFunc("GET /api/v1/notifications/statuses", h.ListStatuses)
	r.mux.HandleFunc("GET /api/v1/notifications/priorities", h.ListPriorities)

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// NewServer creates a new HTTP server with the router configured.
func NewServer(port string, h *handlers.Handlers, collector *metrics.Collector) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(h, collector).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
