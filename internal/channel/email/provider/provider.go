// Package provider defines the email provider interface and a registry with
// primary and fallback providers (SES, Resend, SMTP).
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoProvider is returned when no configured provider is available.
var ErrNoProvider = errors.New("no configured email provider available")

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

	// Send sends an email and returns the provider message id.
	Send(ctx context.Context, req *EmailRequest) (string, error)

	// IsConfigured returns true if the provider is properly configured.
	IsConfigured() bool
}

// Registry manages email providers with fallback support.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string // registration order
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
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[provider.Name()]; !exists {
		r.order = append(r.order, provider.Name())
	}
	r.providers[provider.Name()] = provider
	slog.Info("Registered email provider", "name", provider.Name(), "configured", provider.IsConfigured())
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

// candidates returns configured providers in try order: primary, fallbacks,
// then any other configured provider in registration order.
func (r *Registry) candidates() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Provider
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		if p, ok := r.providers[name]; ok && p.IsConfigured() {
			out = append(out, p)
		}
	}

	add(r.primary)
	for _, name := range r.fallback {
		add(name)
	}
	for _, name := range r.order {
		add(name)
	}
	return out
}

// Send sends an email with the first configured provider, falling back to the
// next one on failure. The first provider's error is returned when all fail.
func (r *Registry) Send(ctx context.Context, req *EmailRequest) (string, error) {
	providers := r.candidates()
	if len(providers) == 0 {
		return "", ErrNoProvider
	}

	var firstErr error
	for i, p := range providers {
		id, err := p.Send(ctx, req)
		if err == nil {
			if i > 0 {
				slog.Info("Email sent with fallback provider", "provider", p.Name(), "primary", providers[0].Name())
			}
			return id, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Warn("Email provider failed", "provider", p.Name(), "error", err)
	}
	return "", firstErr
}

// List returns all registered provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
