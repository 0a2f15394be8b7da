package handlers

import (
	"net/http"
	"strconv"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/inapp"
)

// InboxResponse is a recipient's in-app inbox, newest first.
type InboxResponse struct {
	RecipientID string       `json:"recipient_id"`
	Items       []inapp.Item `json:"items"`
}

// GetInbox returns a recipient's in-app inbox.
// GET /api/v1/notifications/inbox/{recipientId}?limit=
func (h *Handlers) GetInbox(w http.ResponseWriter, r *http.Request) {
	if h.inbox == nil {
		http.Error(w, "In-app inbox is not configured", http.StatusServiceUnavailable)
		return
	}

	recipientID := r.PathValue("recipientId")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}

	items, err := h.inbox.Inbox(r.Context(), recipientID, limit)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, InboxResponse{RecipientID: recipientID, Items: items})
}
