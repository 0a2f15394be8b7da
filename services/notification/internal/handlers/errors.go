package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// handleServiceError maps notification service errors to HTTP responses.
// Returns true if error was handled, false otherwise.
func handleServiceError(w http.ResponseWriter, err error, resourceID string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, notifications.ErrNotFound):
		http.Error(w, "Notification not found", http.StatusNotFound)
	case errors.Is(err, notifications.ErrInvalidNotification):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Notification operation failed", "error", err, "notification_id", resourceID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
	return true
}

// OperationRejected is returned with 409 when send, retry or cancel does not
// apply to the notification's current status.
type OperationRejected struct {
	Error          string               `json:"error"`
	NotificationID string               `json:"notification_id"`
	CurrentStatus  notifications.Status `json:"current_status"`
}
