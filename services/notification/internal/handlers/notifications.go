package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// CreateNotificationRequest represents a request to create a notification manually.
type CreateNotificationRequest struct {
	PatientID         string  `json:"patient_id"`
	RecipientType     string  `json:"recipient_type"`
	RecipientID       *string `json:"recipient_id,omitempty"`
	RecipientEmail    *string `json:"recipient_email,omitempty"`
	RecipientPhone    *string `json:"recipient_phone,omitempty"`
	NotificationType  string  `json:"notification_type"`
	Channel           string  `json:"channel"`
	Subject           string  `json:"subject"`
	Message           string  `json:"message"`
	RelatedEntityID   *string `json:"related_entity_id,omitempty"`
	RelatedEntityType *string `json:"related_entity_type,omitempty"`
	Priority          string  `json:"priority,omitempty"`
}

// OperationResponse reports the outcome of send, retry or cancel.
type OperationResponse struct {
	NotificationID string               `json:"notification_id"`
	Status         notifications.Status `json:"status"`
	Delivered      bool                 `json:"delivered"`
}

// PendingCountResponse wraps the pending notification count.
type PendingCountResponse struct {
	PendingNotificationCount int64 `json:"pendingNotificationCount"`
}

// CreateNotification creates a Pending notification.
// POST /api/v1/notifications
func (h *Handlers) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := notifications.CreateNotification{
		PatientID:         req.PatientID,
		RecipientType:     req.RecipientType,
		RecipientID:       req.RecipientID,
		RecipientEmail:    req.RecipientEmail,
		RecipientPhone:    req.RecipientPhone,
		Subject:           req.Subject,
		Message:           req.Message,
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityType: req.RelatedEntityType,
	}

	var ok bool
	if in.NotificationType, ok = notifications.ParseType(req.NotificationType); !ok {
		http.Error(w, "invalid notification_type: "+req.NotificationType, http.StatusBadRequest)
		return
	}
	if in.Channel, ok = notifications.ParseChannel(req.Channel); !ok {
		http.Error(w, "invalid channel: "+req.Channel, http.StatusBadRequest)
		return
	}
	if req.Priority != "" {
		if in.Priority, ok = notifications.ParsePriority(req.Priority); !ok {
			http.Error(w, "invalid priority: "+req.Priority, http.StatusBadRequest)
			return
		}
	}

	n, err := h.notifications.Create(r.Context(), in)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// GetNotification retrieves a notification by ID.
// GET /api/v1/notifications/{id}
func (h *Handlers) GetNotification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := h.notifications.Get(r.Context(), id)
	if handleServiceError(w, err, id) {
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ListNotifications lists notifications, newest first.
// GET /api/v1/notifications?patient_id=&recipient_type=&notification_type=&channel=&status=&priority=&from=&to=&limit=&offset=
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.notifications.List(r.Context(), filter)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseListFilter(r *http.Request) (notifications.ListFilter, error) {
	q := r.URL.Query()
	p := parsePagination(r)
	f := notifications.ListFilter{
		PatientID:         q.Get("patient_id"),
		RecipientType:     q.Get("recipient_type"),
		RelatedEntityType: q.Get("related_entity_type"),
		Limit:             p.Limit,
		Offset:            p.Offset,
	}

	if v := q.Get("notification_type"); v != "" {
		t, ok := notifications.ParseType(v)
		if !ok {
			return f, fmt.Errorf("invalid notification_type: %s", v)
		}
		f.NotificationType = t
	}
	if v := q.Get("channel"); v != "" {
		c, ok := notifications.ParseChannel(v)
		if !ok {
			return f, fmt.Errorf("invalid channel: %s", v)
		}
		f.Channel = c
	}
	if v := q.Get("status"); v != "" {
		st, ok := notifications.ParseStatus(v)
		if !ok {
			return f, fmt.Errorf("invalid status: %s", v)
		}
		f.Status = st
	}
	if v := q.Get("priority"); v != "" {
		pr, ok := notifications.ParsePriority(v)
		if !ok {
			return f, fmt.Errorf("invalid priority: %s", v)
		}
		f.Priority = pr
	}

	var err error
	if f.From, err = parseTimeParam(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTimeParam(r, "to"); err != nil {
		return f, err
	}
	return f, nil
}

// ListNotificationsByPatient lists a patient's notifications, newest first.
// GET /api/v1/notifications/patient/{patientId}
func (h *Handlers) ListNotificationsByPatient(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	result, err := h.notifications.ByPatient(r.Context(), r.PathValue("patientId"), p.Limit, p.Offset)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListFailedNotifications lists Failed notifications, newest first.
// GET /api/v1/notifications/failed
func (h *Handlers) ListFailedNotifications(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	result, err := h.notifications.Failed(r.Context(), p.Limit, p.Offset)
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CountPendingNotifications counts Pending notifications.
// GET /api/v1/notifications/count/pending
func (h *Handlers) CountPendingNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.CountPending(r.Context())
	if handleServiceError(w, err, "") {
		return
	}
	writeJSON(w, http.StatusOK, PendingCountResponse{PendingNotificationCount: n})
}

// SendNotification delivers a Pending notification now.
// POST /api/v1/notifications/{id}/send
func (h *Handlers) SendNotification(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "sent", notifications.StatusPending, true, h.notifications.Send)
}

// RetryNotification resets a Failed notification and sends it again.
// POST /api/v1/notifications/{id}/retry
func (h *Handlers) RetryNotification(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "retried", notifications.StatusFailed, true, h.notifications.Retry)
}

// CancelNotification cancels a Pending notification.
// POST /api/v1/notifications/{id}/cancel
func (h *Handlers) CancelNotification(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "cancelled", notifications.StatusPending, false, h.notifications.Cancel)
}

// runOperation answers 409 with the current status unless the notification is
// in the required status. A delivery that was attempted and failed is a 200
// with delivered=false.
func (h *Handlers) runOperation(w http.ResponseWriter, r *http.Request, verb string, required notifications.Status, delivers bool, op func(ctx context.Context, id string) (bool, error)) {
	id := r.PathValue("id")
	ctx := r.Context()

	current, err := h.notifications.Get(ctx, id)
	if handleServiceError(w, err, id) {
		return
	}
	if current.Status != required {
		h.writeRejected(w, id, verb, current.Status)
		return
	}

	ok, err := op(ctx, id)
	if handleServiceError(w, err, id) {
		return
	}

	current, err = h.notifications.Get(ctx, id)
	if handleServiceError(w, err, id) {
		return
	}
	if !ok && !(delivers && current.Status == notifications.StatusFailed) {
		h.writeRejected(w, id, verb, current.Status)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{
		NotificationID: id,
		Status:         current.Status,
		Delivered:      current.Status == notifications.StatusSent,
	})
}

func (h *Handlers) writeRejected(w http.ResponseWriter, id, verb string, current notifications.Status) {
	slog.Info("Notification operation rejected", "notification_id", id, "operation", verb, "current_status", current)
	writeJSON(w, http.StatusConflict, OperationRejected{
		Error:          fmt.Sprintf("notification cannot be %s from status %s", verb, current),
		NotificationID: id,
		CurrentStatus:  current,
	})
}
