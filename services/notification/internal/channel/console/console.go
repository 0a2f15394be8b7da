// Package console delivers notifications by printing them. It always succeeds
// and is the development channel.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// Sender writes notifications to an io.Writer.
type Sender struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSender creates a console sender writing to stdout.
func NewSender() *Sender {
	return NewSenderWithWriter(os.Stdout)
}

// NewSenderWithWriter creates a console sender writing to w.
func NewSenderWithWriter(w io.Writer) *Sender {
	return &Sender{out: w}
}

// Channel returns the channel this sender handles.
func (s *Sender) Channel() notifications.Channel {
	return notifications.ChannelConsole
}

// Send prints the notification. Write errors are logged, not returned.
func (s *Sender) Send(_ context.Context, n *notifications.Notification) error {
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "NOTIFICATION %s [%s]\n", n.ID, n.Priority)
	fmt.Fprintf(&b, "To:      %s (%s)\n", n.RecipientType, deref(n.RecipientID))
	fmt.Fprintf(&b, "Patient: %s\n", n.PatientID)
	fmt.Fprintf(&b, "Subject: %s\n", n.Subject)
	fmt.Fprintln(&b, strings.Repeat("-", 60))
	fmt.Fprintln(&b, n.Message)
	fmt.Fprintln(&b, rule)

	s.mu.Lock()
	_, err := io.WriteString(s.out, b.String())
	s.mu.Unlock()
	if err != nil {
		slog.Warn("Failed to write console notification", "notification_id", n.ID, "error", err)
	}

	slog.Info("Console notification delivered",
		"notification_id", n.ID,
		"recipient_type", n.RecipientType,
		"patient_id", n.PatientID,
	)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
