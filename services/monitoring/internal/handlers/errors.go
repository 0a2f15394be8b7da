package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/alerts"
)

// handleServiceError maps alert service errors to HTTP responses.
// Returns true if error was handled, false otherwise.
func handleServiceError(w http.ResponseWriter, err error, resourceID string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, alerts.ErrNotFound):
		http.Error(w, "Alert not found", http.StatusNotFound)
	case errors.Is(err, alerts.ErrConcurrentUpdate), errors.Is(err, alerts.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, alerts.ErrInvalidAlert):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Alert operation failed", "error", err, "alert_id", resourceID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
	return true
}

// TransitionRejected is returned with 409 when a lifecycle operation does not apply
// to the alert's current status.
type TransitionRejected struct {
	Error         string        `json:"error"`
	AlertID       string        `json:"alert_id"`
	CurrentStatus alerts.Status `json:"current_status"`
}
