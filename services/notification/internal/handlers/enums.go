package handlers

import (
	"net/http"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// ListChannels returns the delivery channels.
// GET /api/v1/notifications/channels
func (h *Handlers) ListChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notifications.Channels)
}

// ListTypes returns the notification types.
// GET /api/v1/notifications/types
func (h *Handlers) ListTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notifications.Types)
}

// ListStatuses returns the delivery statuses.
// GET /api/v1/notifications/statuses
func (h *Handlers) ListStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notifications.Statuses)
}

// ListPriorities returns the priorities.
// GET /api/v1/notifications/priorities
func (h *Handlers) ListPriorities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notifications.Priorities)
}
