package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/email/provider"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/retry"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

type fakeMailer struct {
	req *provider.EmailRequest
	err error
}

func (f *fakeMailer) Send(ctx context.Context, req *provider.EmailRequest) error {
	f.req = req
	return f.err
}

func strPtr(s string) *string { return &s }

func testNotification(email *string) *notifications.Notification {
	return &notifications.Notification{
		ID:             "n1",
		RecipientEmail: email,
		Subject:        "Critical Alert: Low <SpO2>",
		Message:        "Patient Alert: oxygen\n\nSeverity: Critical",
		Priority:       notifications.PriorityCritical,
	}
}

func TestSend(t *testing.T) {
	m := &fakeMailer{}
	s := NewSender(m, "alerts@hospital.com")

	if err := s.Send(context.Background(), testNotification(strPtr(" jane.smith@hospital.com "))); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if m.req.From != "alerts@hospital.com" || len(m.req.To) != 1 || m.req.To[0] != "jane.smith@hospital.com" {
		t.Errorf("request = %+v", m.req)
	}
	if m.req.Body != "Patient Alert: oxygen\n\nSeverity: Critical" {
		t.Errorf("Body = %q", m.req.Body)
	}
	if !strings.Contains(m.req.HTML, "Low &lt;SpO2&gt;") || !strings.Contains(m.req.HTML, "#b71c1c") {
		t.Errorf("HTML = %q", m.req.HTML)
	}
}

func TestSend_RecipientErrorsArePermanent(t *testing.T) {
	s := NewSender(&fakeMailer{}, "alerts@hospital.com")
	for name, addr := range map[string]*string{"missing": nil, "blank": strPtr("  "), "no at sign": strPtr("jane.smith")} {
		t.Run(name, func(t *testing.T) {
			err := s.Send(context.Background(), testNotification(addr))
			if err == nil {
				t.Fatal("Send() error = nil")
			}
			if retry.IsRetryable(err) {
				t.Errorf("IsRetryable(%v) = true", err)
			}
		})
	}
}

func TestSend_MailerError(t *testing.T) {
	s := NewSender(&fakeMailer{err: errors.New("connection timeout")}, "alerts@hospital.com")
	err := s.Send(context.Background(), testNotification(strPtr("a@hospital.com")))
	if err == nil || !retry.IsRetryable(err) {
		t.Errorf("Send() error = %v, want retryable", err)
	}
	if s.Channel() != notifications.ChannelEmail {
		t.Errorf("Channel() = %s", s.Channel())
	}
}
