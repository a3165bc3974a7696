// Package webhook delivers alerts to user-configured endpoints via HTTP POST.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// DefaultTimeout bounds a single webhook request.
const DefaultTimeout = 30 * time.Second

// Adapter implements channel.Adapter for webhooks.
type Adapter struct {
	httpClient *http.Client
	now        func() time.Time
}

var _ channel.Adapter = (*Adapter)(nil)

// New creates a webhook adapter. A nil client gets DefaultTimeout.
func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Adapter{httpClient: httpClient, now: time.Now}
}

// Channel returns delivery.ChannelWebhook.
func (a *Adapter) Channel() delivery.Channel {
	return delivery.ChannelWebhook
}

// IsValidURL checks if s is an absolute HTTP/HTTPS URL.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Deliver posts the alert payload to the recipient's webhook URL.
func (a *Adapter) Deliver(ctx context.Context, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) (channel.Result, error) {
	if recipient == nil || strings.TrimSpace(recipient.WebhookURL) == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelWebhook, "no webhook URL on file for user %s", rec.UserID)
	}
	endpoint := strings.TrimSpace(recipient.WebhookURL)
	if !IsValidURL(endpoint) {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelWebhook, "invalid webhook URL %q (must be a valid HTTP/HTTPS URL)", maskURL(endpoint))
	}

	body, err := json.Marshal(channel.BuildPayload(rec, event, a.now().UTC()))
	if err != nil {
		return channel.Result{}, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelWebhook, "failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Argus-Delivery", rec.ID)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send webhook notification",
			"error", err,
			"webhook_url", maskURL(endpoint),
			"delivery_id", rec.ID,
		)
		return channel.Result{}, channel.ProviderError(delivery.ChannelWebhook, fmt.Errorf("failed to send webhook notification: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Webhook returned error status",
			"status_code", resp.StatusCode,
			"webhook_url", maskURL(endpoint),
			"delivery_id", rec.ID,
		)
		return channel.Result{}, channel.StatusError(delivery.ChannelWebhook, resp.StatusCode,
			fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}

	slog.Info("Successfully sent webhook notification",
		"webhook_url", maskURL(endpoint),
		"delivery_id", rec.ID,
		"alert_id", event.ID,
		"user_id", rec.UserID,
	)
	return channel.Result{ProviderRef: resp.Header.Get("X-Request-Id")}, nil
}

// maskURL drops the path and query, which often carry tokens.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://" + u.Host
}
