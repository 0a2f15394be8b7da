package client

import (
	"context"
	"time"
)

// Notification mirrors the notification service log entry.
type Notification struct {
	ID                string     `json:"id"`
	PatientID         string     `json:"patient_id"`
	RecipientType     string     `json:"recipient_type"`
	RecipientID       *string    `json:"recipient_id,omitempty"`
	RecipientEmail    *string    `json:"recipient_email,omitempty"`
	RecipientPhone    *string    `json:"recipient_phone,omitempty"`
	NotificationType  string     `json:"notification_type"`
	Channel           string     `json:"channel"`
	Subject           string     `json:"subject"`
	Message           string     `json:"message"`
	Status            string     `json:"status"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	RetryCount        int        `json:"retry_count"`
	RelatedEntityID   *string    `json:"related_entity_id,omitempty"`
	RelatedEntityType *string    `json:"related_entity_type,omitempty"`
	Priority          string     `json:"priority"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NotificationList is one page of notifications.
type NotificationList struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	Limit         int             `json:"limit"`
	Offset        int             `json:"offset"`
}

// NotificationFilter selects notifications. Empty fields are not sent.
type NotificationFilter struct {
	PatientID     string
	RecipientType string
	Channel       string
	Status        string
	Priority      string
	Limit         int
	Offset        int
}

// Operation is the result of send, retry or cancel.
type Operation struct {
	NotificationID string `json:"notification_id"`
	Status         string `json:"status"`
	Delivered      bool   `json:"delivered"`
}

// ListNotifications returns a filtered page of notifications.
func (c *Client) ListNotifications(ctx context.Context, f NotificationFilter) (*NotificationList, error) {
	params := paginationParams(f.Limit, f.Offset)
	for key, value := range map[string]string{
		"patient_id":     f.PatientID,
		"recipient_type": f.RecipientType,
		"channel":        f.Channel,
		"status":         f.Status,
		"priority":       f.Priority,
	} {
		if value != "" {
			params[key] = value
		}
	}

	var result NotificationList
	resp, err := c.notification.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get("/api/v1/notifications")
	if err := checkResponse(resp, err, "list notifications"); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetNotification returns one notification.
func (c *Client) GetNotification(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	resp, err := c.notification.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&n).
		Get("/api/v1/notifications/{id}")
	if err := checkResponse(resp, err, "get notification "+id); err != nil {
		return nil, err
	}
	return &n, nil
}

// SendNotification attempts delivery of a Pending notification.
func (c *Client) SendNotification(ctx context.Context, id string) (*Operation, error) {
	return c.operate(ctx, id, "send")
}

// RetryNotification re-attempts delivery of a Failed notification.
func (c *Client) RetryNotification(ctx context.Context, id string) (*Operation, error) {
	return c.operate(ctx, id, "retry")
}

// CancelNotification cancels a Pending notification.
func (c *Client) CancelNotification(ctx context.Context, id string) (*Operation, error) {
	return c.operate(ctx, id, "cancel")
}

func (c *Client) operate(ctx context.Context, id, action string) (*Operation, error) {
	var result Operation
	resp, err := c.notification.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&result).
		Post("/api/v1/notifications/{id}/" + action)
	if err := checkResponse(resp, err, action+" notification "+id); err != nil {
		return nil, err
	}
	return &result, nil
}

// PendingNotificationCount counts Pending notifications.
func (c *Client) PendingNotificationCount(ctx context.Context) (int64, error) {
	var result struct {
		PendingNotificationCount int64 `json:"pendingNotificationCount"`
	}
	resp, err := c.notification.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/api/v1/notifications/count/pending")
	if err := checkResponse(resp, err, "count pending notifications"); err != nil {
		return 0, err
	}
	return result.PendingNotificationCount, nil
}
