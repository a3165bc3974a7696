package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/email"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/email/provider"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/push"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/sms"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/voice"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/web"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/webhook"
	"github.com/Hibaxbelghith/argus-sub000/internal/config"
)

// buildChannels creates one adapter per delivery channel. Channels without
// credentials are still registered; their deliveries fail with a
// configuration error.
func buildChannels(ctx context.Context, cfg config.Channels, rdb *redis.Client) (*channel.Registry, error) {
	var live web.Publisher
	if rdb != nil {
		live = rdb
	}

	emails, err := buildEmailProviders(ctx, cfg.Email)
	if err != nil {
		return nil, err
	}

	smsCfg := sms.Config{AccountSID: cfg.Twilio.AccountSID, AuthToken: cfg.Twilio.AuthToken, FromNumber: cfg.Twilio.SMSFrom}
	voiceCfg := voice.Config{AccountSID: cfg.Twilio.AccountSID, AuthToken: cfg.Twilio.AuthToken, FromNumber: cfg.Twilio.VoiceFrom}
	if !smsCfg.Configured() {
		slog.Warn("SMS channel not configured")
	}
	if !voiceCfg.Configured() {
		slog.Warn("Voice channel not configured")
	}

	pushAdapter, err := push.New(ctx, cfg.Push)
	if err != nil {
		return nil, err
	}
	if cfg.Push.ProjectID == "" {
		slog.Warn("Push channel not configured")
	}

	registry := channel.NewRegistry(
		web.New(live),
		email.New(emails, cfg.Email.From),
		sms.New(smsCfg),
		voice.New(voiceCfg),
		pushAdapter,
		webhook.New(&http.Client{Timeout: cfg.WebhookTimeout}),
	)
	slog.Info("Initialized delivery channels", "channels", registry.List())
	return registry, nil
}

func buildEmailProviders(ctx context.Context, cfg config.Email) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	registry.Register(provider.NewSESProvider(ctx, cfg.SESRegion))
	registry.Register(provider.NewResendProvider(cfg.ResendAPIKey))
	registry.Register(provider.NewSMTPProvider(cfg.SMTP))

	if cfg.Primary != "" {
		if err := registry.SetPrimary(cfg.Primary); err != nil {
			return nil, fmt.Errorf("email provider: %w", err)
		}
	}
	if err := registry.SetFallback(cfg.Fallback...); err != nil {
		return nil, fmt.Errorf("email fallback: %w", err)
	}
	return registry, nil
}
