// Package email delivers alerts by email through the provider registry.
package email

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/email/provider"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// Sender is the subset of *provider.Registry used by the adapter.
type Sender interface {
	Send(ctx context.Context, req *provider.EmailRequest) (string, error)
}

// Adapter implements channel.Adapter for email.
type Adapter struct {
	sender Sender
	from   string
}

var _ channel.Adapter = (*Adapter)(nil)

// New creates an email adapter sending from the given address.
func New(sender Sender, from string) *Adapter {
	return &Adapter{sender: sender, from: from}
}

// Channel returns delivery.ChannelEmail.
func (a *Adapter) Channel() delivery.Channel {
	return delivery.ChannelEmail
}

// Deliver emails the alert to the recipient's address.
func (a *Adapter) Deliver(ctx context.Context, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) (channel.Result, error) {
	if a.sender == nil || a.from == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelEmail, "email sender is not configured")
	}
	if recipient == nil || strings.TrimSpace(recipient.Email) == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelEmail, "no email address on file for user %s", rec.UserID)
	}
	if !strings.Contains(recipient.Email, "@") {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelEmail, "invalid email address %q", recipient.Email)
	}

	req := &provider.EmailRequest{
		From:    a.from,
		To:      []string{strings.TrimSpace(recipient.Email)},
		Subject: channel.EmailSubject(event),
		Body:    channel.EmailBody(rec, event),
	}

	id, err := a.sender.Send(ctx, req)
	if errors.Is(err, provider.ErrNoProvider) {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelEmail, "%v", err)
	}
	if err != nil {
		return channel.Result{}, channel.ProviderError(delivery.ChannelEmail, err)
	}

	slog.Info("Successfully sent email notification",
		"delivery_id", rec.ID,
		"alert_id", event.ID,
		"user_id", rec.UserID,
		"message_id", id,
	)
	return channel.Result{ProviderRef: id}, nil
}
