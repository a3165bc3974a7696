package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendAPI is the subset of the Resend emails service used by ResendProvider.
type ResendAPI interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendProvider implements email sending via the Resend API.
type ResendProvider struct {
	emails ResendAPI
}

// NewResendProvider creates a Resend provider. An empty API key yields an
// unconfigured provider.
func NewResendProvider(apiKey string) *ResendProvider {
	if apiKey == "" {
		return &ResendProvider{}
	}
	client := resend.NewClient(apiKey)
	slog.Info("Resend email provider initialized")
	return &ResendProvider{emails: client.Emails}
}

// NewResendProviderWithAPI creates a Resend provider around an existing emails service.
func NewResendProviderWithAPI(emails ResendAPI) *ResendProvider {
	return &ResendProvider{emails: emails}
}

// Name returns the provider name.
func (p *ResendProvider) Name() string {
	return "resend"
}

// IsConfigured returns true if Resend is properly configured.
func (p *ResendProvider) IsConfigured() bool {
	return p.emails != nil
}

// Send sends an email via the Resend API.
func (p *ResendProvider) Send(ctx context.Context, req *EmailRequest) (string, error) {
	if p.emails == nil {
		return "", errors.New("Resend client not initialized")
	}
	if len(req.To) == 0 {
		return "", errors.New("no recipients specified")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Text:    req.Body,
	}
	if req.HTML != "" {
		params.Html = req.HTML
	}

	result, err := p.emails.Send(params)
	if err != nil {
		return "", fmt.Errorf("Resend send failed: %w", err)
	}

	slog.Info("Email sent via Resend", "email_id", result.Id, "to", req.To)
	return result.Id, nil
}
