package router

import (
	"net/http"
)

// setupRoutes configures all HTTP routes for the API.
func (r *Router) setupRoutes() {
	h := r.handlers

	// Alert endpoints
	r.mux.HandleFunc("GET /api/v1/alerts", h.ListAlerts)
	r.mux.HandleFunc("POST /api/v1/alerts", h.CreateAlert)
	r.mux.HandleFunc("GET /api/v1/alerts/{id}", h.GetAlert)
	r.mux.HandleFunc("PUT /api/v1/alerts/{id}", h.UpdateAlert)
	r.mux.HandleFunc("DELETE /api/v1/alerts/{id}", h.DeleteAlert)

	// Lifecycle
	r.mux.HandleFunc("PATCH /api/v1/alerts/{id}/acknowledge", h.AcknowledgeAlert)
	r.mux.HandleFunc("PATCH /api/v1/alerts/{id}/resolve", h.ResolveAlert)
	r.mux.HandleFunc("PATCH /api/v1/alerts/{id}/close", h.CloseAlert)

	// Queries
	r.mux.HandleFunc("GET /api/v1/alerts/active", h.ListActiveAlerts)
	r.mux.HandleFunc("GET /api/v1/alerts/critical", h.ListCriticalAlerts)
	r.mux.HandleFunc("GET /api/v1/alerts/count/active", h.CountActiveAlerts)
	r.mux.HandleFunc("GET /api/v1/alerts/patient/{patientId}", h.ListAlertsByPatient)
	r.mux.HandleFunc("GET /api/v1/alerts/patient/{patientId}/daterange", h.ListAlertsByDateRange)
	r.mux.HandleFunc("GET /api/v1/alerts/severities", h.ListSeverities)
	r.mux.HandleFunc("GET /api/v1/alerts/statuses", h.ListStatuses)

	// Service metrics endpoint
	r.mux.HandleFunc("GET /api/v1/services/metrics", h.GetServiceMetrics)

	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
