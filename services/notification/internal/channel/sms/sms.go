// Package sms delivers notifications as text messages through an HTTP SMS gateway.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/retry"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// MaxBodyLength caps the text sent to the gateway.
const MaxBodyLength = 480

// Config holds SMS gateway settings.
type Config struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// Sender implements the SMS channel against POST {BaseURL}/messages.
type Sender struct {
	client *resty.Client
	from   string
}

type sendRequest struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Reference string `json:"reference"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// NewSender creates an SMS sender.
func NewSender(cfg Config) *Sender {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Sender{client: client, from: cfg.From}
}

// Channel returns the channel this sender handles.
func (s *Sender) Channel() notifications.Channel {
	return notifications.ChannelSMS
}

// Send posts the notification subject and body to the gateway.
// 4xx responses other than 429 are permanent failures.
func (s *Sender) Send(ctx context.Context, n *notifications.Notification) error {
	if n.RecipientPhone == nil || strings.TrimSpace(*n.RecipientPhone) == "" {
		return fmt.Errorf("recipient phone is required")
	}
	to := strings.TrimSpace(*n.RecipientPhone)

	var result sendResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(sendRequest{
			From:      s.from,
			To:        to,
			Body:      smsBody(n),
			Reference: n.ID,
		}).
		SetResult(&result).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("failed to call sms gateway: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("sms gateway rate limit (status %d)", code)
	case code >= 400 && code < 500:
		return retry.Permanent(fmt.Errorf("sms gateway rejected message: status %d", code))
	case resp.IsError():
		return fmt.Errorf("sms gateway returned status %d", code)
	}

	slog.Info("SMS notification delivered",
		"notification_id", n.ID,
		"to", to,
		"gateway_message_id", result.MessageID,
	)
	return nil
}

// smsBody joins subject and message, truncated on a rune boundary.
func smsBody(n *notifications.Notification) string {
	body := n.Subject
	if n.Message != "" {
		body += "\n" + n.Message
	}
	if len(body) <= MaxBodyLength {
		return body
	}
	cut := MaxBodyLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
