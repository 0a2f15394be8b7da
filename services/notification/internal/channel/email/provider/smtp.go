package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SMTPProvider implements email sending via an SMTP relay. Port 465 uses
// implicit TLS; other ports use STARTTLS when the server offers it.
type SMTPProvider struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPProvider creates an SMTP provider. An empty host yields an
// unconfigured provider.
func NewSMTPProvider(cfg SMTPConfig) *SMTPProvider {
	d := &net.Dialer{Timeout: 10 * time.Second}
	return &SMTPProvider{cfg: cfg, dial: d.DialContext}
}

// Name returns the provider name.
func (p *SMTPProvider) Name() string {
	return "smtp"
}

// IsConfigured returns true if a host and port are set.
func (p *SMTPProvider) IsConfigured() bool {
	return p.cfg.Host != "" && p.cfg.Port > 0
}

// Send delivers one message over SMTP.
func (p *SMTPProvider) Send(ctx context.Context, req *EmailRequest) error {
	if !p.IsConfigured() {
		return fmt.Errorf("smtp provider not configured")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("email recipient is required")
	}

	addr := net.JoinHostPort(p.cfg.Host, fmt.Sprint(p.cfg.Port))
	conn, err := p.dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}
	if p.cfg.Port == 465 {
		conn = tls.Client(conn, &tls.Config{ServerName: p.cfg.Host})
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if p.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.cfg.Host}); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if p.cfg.User != "" && p.cfg.Password != "" {
		auth := smtp.PlainAuth("", p.cfg.User, p.cfg.Password, p.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(req.From); err != nil {
		return fmt.Errorf("failed to set sender %s: %w", req.From, err)
	}
	for _, rcpt := range req.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write(BuildMessage(req, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("failed to write email data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

// BuildMessage renders req as an RFC 822 plain text message.
func BuildMessage(req *EmailRequest, now time.Time) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", req.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(req.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", req.Subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", now.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(req.Body, "\n", "\r\n"))
	return msg.Bytes()
}
