package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/retry"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

type mockSender struct {
	channel notifications.Channel
	errs    []error
	calls   int
}

func (m *mockSender) Channel() notifications.Channel { return m.channel }

func (m *mockSender) Send(ctx context.Context, n *notifications.Notification) error {
	m.calls++
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

func testRetryConfig() retry.Config {
	return retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockSender{channel: notifications.ChannelSMS})
	r.Register(&mockSender{channel: notifications.ChannelConsole})
	r.Register(&mockSender{channel: notifications.ChannelSMS})

	got := r.List()
	if len(got) != 2 || got[0] != notifications.ChannelConsole || got[1] != notifications.ChannelSMS {
		t.Errorf("List() = %v", got)
	}
	if _, ok := r.Get(notifications.ChannelPush); ok {
		t.Error("Get(Push) found an unregistered sender")
	}
}

func TestDeliverer_UnknownChannel(t *testing.T) {
	d := NewDeliverer(NewRegistry(), testRetryConfig())
	err := d.Deliver(context.Background(), &notifications.Notification{ID: "n1", Channel: "Pigeon"})
	if !errors.Is(err, notifications.ErrUnknownChannel) {
		t.Errorf("Deliver() error = %v, want ErrUnknownChannel", err)
	}
}

func TestDeliverer_RetriesTransientFailures(t *testing.T) {
	s := &mockSender{channel: notifications.ChannelSMS, errs: []error{errors.New("sms gateway returned status 503")}}
	r := NewRegistry()
	r.Register(s)

	err := NewDeliverer(r, testRetryConfig()).Deliver(context.Background(), &notifications.Notification{ID: "n1", Channel: notifications.ChannelSMS})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if s.calls != 2 {
		t.Errorf("sender called %d times, want 2", s.calls)
	}
}

func TestDeliverer_PermanentFailureNotRetried(t *testing.T) {
	s := &mockSender{channel: notifications.ChannelEmail, errs: []error{errors.New("recipient email is required")}}
	r := NewRegistry()
	r.Register(s)

	err := NewDeliverer(r, testRetryConfig()).Deliver(context.Background(), &notifications.Notification{ID: "n1", Channel: notifications.ChannelEmail})
	if err == nil {
		t.Fatal("Deliver() error = nil")
	}
	if s.calls != 1 {
		t.Errorf("sender called %d times, want 1", s.calls)
	}
}

func TestPolicy(t *testing.T) {
	tests := []struct {
		policy   Policy
		priority notifications.Priority
		phone    string
		want     notifications.Channel
	}{
		{PolicyConsole, notifications.PriorityCritical, "+1", notifications.ChannelConsole},
		{PolicyConsole, notifications.PriorityNormal, "", notifications.ChannelConsole},
		{PolicyProduction, notifications.PriorityCritical, "+998901234567", notifications.ChannelSMS},
		{PolicyProduction, notifications.PriorityCritical, "", notifications.ChannelEmail},
		{PolicyProduction, notifications.PriorityHigh, "+998901234567", notifications.ChannelEmail},
		{PolicyProduction, notifications.PriorityNormal, "", notifications.ChannelEmail},
	}
	for _, tt := range tests {
		if got := tt.policy.Select(tt.priority, tt.phone); got != tt.want {
			t.Errorf("%s.Select(%s, %q) = %s, want %s", tt.policy, tt.priority, tt.phone, got, tt.want)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(" Production "); err != nil || p != PolicyProduction {
		t.Errorf("ParsePolicy(Production) = %q, %v", p, err)
	}
	if p, err := ParsePolicy("console"); err != nil || p != PolicyConsole {
		t.Errorf("ParsePolicy(console) = %q, %v", p, err)
	}
	if _, err := ParsePolicy("carrier-pigeon"); err == nil {
		t.Error("ParsePolicy(carrier-pigeon) expected error")
	}
}
