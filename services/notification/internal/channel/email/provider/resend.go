package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendProvider implements email sending via the Resend API.
type ResendProvider struct {
	client *resend.Client
}

// NewResendProvider creates a Resend provider. An empty API key yields an
// unconfigured provider.
func NewResendProvider(apiKey string) *ResendProvider {
	if apiKey == "" {
		return &ResendProvider{}
	}
	return &ResendProvider{client: resend.NewClient(apiKey)}
}

// Name returns the provider name.
func (p *ResendProvider) Name() string {
	return "resend"
}

// IsConfigured returns true if an API key was supplied.
func (p *ResendProvider) IsConfigured() bool {
	return p.client != nil
}

// Send sends an email via the Resend API.
func (p *ResendProvider) Send(_ context.Context, req *EmailRequest) error {
	if p.client == nil {
		return fmt.Errorf("resend provider not configured")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("email recipient is required")
	}

	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
	}
	if req.HTML != "" {
		params.Html = req.HTML
	}
	if req.Body != "" {
		params.Text = req.Body
	}

	result, err := p.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}

	slog.Info("Email sent via Resend",
		"email_id", result.Id,
		"to", req.To,
		"subject", req.Subject,
	)
	return nil
}
