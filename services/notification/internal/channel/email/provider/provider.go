// Package provider defines the email provider interface and a registry with
// primary and fallback selection. Backends are SES, Resend and SMTP.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// EmailRequest represents an email to be sent.
type EmailRequest struct {
	From    string
	To      []string
	Subject string
	Body    string // Plain text body
	HTML    string // HTML body (optional)
}

// Provider is the interface that all email providers must implement.
type Provider interface {
	// Name returns the provider name (e.g., "ses", "resend", "smtp").
	Name() string

	// Send sends an email using this provider.
	Send(ctx context.Context, req *EmailRequest) error

	// IsConfigured returns true if the provider is properly configured.
	IsConfigured() bool
}

// ErrNoProvider is returned when no registered provider is configured.
var ErrNoProvider = errors.New("no email provider configured")

// Registry manages email providers with fallback support.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
	fallback  []string
}

// NewRegistry creates a new email provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	slog.Info("Registered email provider", "name", p.Name(), "configured", p.IsConfigured())
}

// SetPrimary sets the primary provider by name.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.primary = name
	return nil
}

// SetFallback sets the fallback providers in order.
func (r *Registry) SetFallback(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.providers[name]; !ok {
			return fmt.Errorf("provider %q not registered", name)
		}
	}
	r.fallback = names
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// candidates returns configured providers: primary, then fallbacks in order,
// then any other configured provider by name.
func (r *Registry) candidates() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Provider
	add := func(name string) {
		if seen[name] {
			return
		}
		if p, ok := r.providers[name]; ok && p.IsConfigured() {
			seen[name] = true
			out = append(out, p)
		}
	}

	if r.primary != "" {
		add(r.primary)
	}
	for _, name := range r.fallback {
		add(name)
	}
	rest := make([]string, 0, len(r.providers))
	for name := range r.providers {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		add(name)
	}
	return out
}

// GetPrimary returns the first configured provider in selection order.
func (r *Registry) GetPrimary() (Provider, error) {
	c := r.candidates()
	if len(c) == 0 {
		return nil, ErrNoProvider
	}
	return c[0], nil
}

// Send sends an email with the best available provider and falls back to the
// next configured provider on failure. The first provider's error is returned
// if every provider fails.
func (r *Registry) Send(ctx context.Context, req *EmailRequest) error {
	c := r.candidates()
	if len(c) == 0 {
		return ErrNoProvider
	}

	firstErr := c[0].Send(ctx, req)
	if firstErr == nil {
		return nil
	}
	for _, p := range c[1:] {
		slog.Warn("Email provider failed, trying fallback",
			"failed", c[0].Name(),
			"fallback", p.Name(),
			"error", firstErr,
		)
		if err := p.Send(ctx, req); err == nil {
			return nil
		}
	}
	return firstErr
}

// List returns all registered provider names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
