// Package email delivers notifications by email through a provider registry.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/email/provider"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/retry"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// Mailer sends a rendered email. *provider.Registry implements it.
type Mailer interface {
	Send(ctx context.Context, req *provider.EmailRequest) error
}

// Sender implements the Email channel.
type Sender struct {
	mailer Mailer
	from   string
}

// NewSender creates an email sender using from as the sender address.
func NewSender(mailer Mailer, from string) *Sender {
	return &Sender{mailer: mailer, from: from}
}

// Channel returns the channel this sender handles.
func (s *Sender) Channel() notifications.Channel {
	return notifications.ChannelEmail
}

// Send emails the notification to its recipient address.
func (s *Sender) Send(ctx context.Context, n *notifications.Notification) error {
	if n.RecipientEmail == nil || strings.TrimSpace(*n.RecipientEmail) == "" {
		return fmt.Errorf("recipient email is required")
	}
	to := strings.TrimSpace(*n.RecipientEmail)
	if !strings.Contains(to, "@") {
		return retry.Permanent(fmt.Errorf("malformed email address %q", to))
	}

	req := &provider.EmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: n.Subject,
		Body:    n.Message,
		HTML:    renderHTML(n),
	}
	if err := s.mailer.Send(ctx, req); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Email notification delivered",
		"notification_id", n.ID,
		"to", to,
		"subject", n.Subject,
	)
	return nil
}

var _ Mailer = (*provider.Registry)(nil)
