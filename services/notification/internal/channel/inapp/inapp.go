// Package inapp delivers notifications to per-recipient inboxes kept in Redis.
package inapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

const (
	// InboxKeyPrefix is the Redis key prefix for recipient inboxes.
	InboxKeyPrefix = "inbox:"
	// DefaultMaxItems is how many entries an inbox keeps.
	DefaultMaxItems = 100
	// DefaultTTL is how long an inbox lives after its last write.
	DefaultTTL = 7 * 24 * time.Hour
)

// Item is one inbox entry, newest first in Inbox results.
type Item struct {
	NotificationID string                 `json:"notification_id"`
	PatientID      string                 `json:"patient_id"`
	Subject        string                 `json:"subject"`
	Message        string                 `json:"message"`
	Priority       notifications.Priority `json:"priority"`
	DeliveredAt    time.Time              `json:"delivered_at"`
}

// Sender implements the InApp channel and reads inboxes back.
type Sender struct {
	redis    *redis.Client
	maxItems int64
	ttl      time.Duration
	now      func() time.Time
}

// NewSender creates an in-app sender. Zero values use the package defaults.
func NewSender(client *redis.Client, maxItems int, ttl time.Duration) *Sender {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Sender{
		redis:    client,
		maxItems: int64(maxItems),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Channel returns the channel this sender handles.
func (s *Sender) Channel() notifications.Channel {
	return notifications.ChannelInApp
}

// InboxKey returns the Redis key of a recipient inbox.
func InboxKey(recipientID string) string {
	return InboxKeyPrefix + recipientID
}

// Send prepends the notification to the recipient inbox, trims it to the
// configured size and refreshes its TTL in one transaction.
func (s *Sender) Send(ctx context.Context, n *notifications.Notification) error {
	if n.RecipientID == nil || *n.RecipientID == "" {
		return fmt.Errorf("recipient id is required")
	}

	data, err := json.Marshal(Item{
		NotificationID: n.ID,
		PatientID:      n.PatientID,
		Subject:        n.Subject,
		Message:        n.Message,
		Priority:       n.Priority,
		DeliveredAt:    s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal inbox item: %w", err)
	}

	key := InboxKey(*n.RecipientID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, s.maxItems-1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write inbox %s: %w", key, err)
	}

	slog.Info("In-app notification delivered", "notification_id", n.ID, "inbox", key)
	return nil
}

// Inbox returns up to limit entries of a recipient inbox, newest first.
// Entries that cannot be decoded are skipped.
func (s *Sender) Inbox(ctx context.Context, recipientID string, limit int) ([]Item, error) {
	if limit <= 0 || int64(limit) > s.maxItems {
		limit = int(s.maxItems)
	}
	raw, err := s.redis.LRange(ctx, InboxKey(recipientID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		var item Item
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			slog.Warn("Skipping malformed inbox item", "recipient_id", recipientID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
