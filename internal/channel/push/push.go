// Package push delivers alerts to mobile devices through Firebase Cloud
// Messaging HTTP v1.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// Config selects the Firebase project and its service account credentials.
// CredentialsJSON wins over CredentialsFile; with neither, application
// default credentials are used.
type Config struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// ClientOptions returns the Google API options for cfg.
func (c Config) ClientOptions() []option.ClientOption {
	switch {
	case c.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.CredentialsJSON))}
	case c.CredentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(c.CredentialsFile)}
	default:
		return nil
	}
}

// Adapter implements channel.Adapter for push notifications.
type Adapter struct {
	svc       *fcm.Service
	projectID string
}

var _ channel.Adapter = (*Adapter)(nil)

// New creates a push adapter. Without a project id the adapter fails every
// delivery with a configuration error.
func New(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Adapter, error) {
	if cfg.ProjectID == "" {
		return &Adapter{}, nil
	}
	opts := append(cfg.ClientOptions(), extra...)
	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create FCM service: %w", err)
	}
	return &Adapter{svc: svc, projectID: cfg.ProjectID}, nil
}

// Channel returns delivery.ChannelPush.
func (a *Adapter) Channel() delivery.Channel {
	return delivery.ChannelPush
}

// Deliver sends the alert to the recipient's registered device token.
func (a *Adapter) Deliver(ctx context.Context, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) (channel.Result, error) {
	if a.svc == nil || a.projectID == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelPush, "FCM project is not configured")
	}
	if recipient == nil || strings.TrimSpace(recipient.PushToken) == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelPush, "no push token on file for user %s", rec.UserID)
	}

	msg, err := a.svc.Projects.Messages.Send("projects/"+a.projectID, BuildRequest(rec, event, strings.TrimSpace(recipient.PushToken))).Context(ctx).Do()
	if err != nil {
		if ctx.Err() != nil {
			return channel.Result{}, ctx.Err()
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return channel.Result{}, channel.StatusError(delivery.ChannelPush, apiErr.Code, err)
		}
		return channel.Result{}, channel.ProviderError(delivery.ChannelPush, err)
	}

	slog.Info("Successfully sent push notification",
		"delivery_id", rec.ID,
		"alert_id", event.ID,
		"user_id", rec.UserID,
		"message", msg.Name,
	)
	return channel.Result{ProviderRef: msg.Name}, nil
}

// BuildRequest builds the FCM message for rec. High and critical alerts are
// sent with high delivery priority.
func BuildRequest(rec *delivery.Record, event *alert.Event, token string) *fcm.SendMessageRequest {
	title, body := channel.PushContent(event)
	priority := "NORMAL"
	if rec.Severity.AtLeast(alert.SeverityHigh) {
		priority = "HIGH"
	}
	return &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token:        token,
			Notification: &fcm.Notification{Title: title, Body: body},
			Data: map[string]string{
				"delivery_id": rec.ID,
				"alert_id":    event.ID,
				"alert_type":  string(event.Type),
				"severity":    string(rec.Severity),
			},
			Android: &fcm.AndroidConfig{Priority: priority},
		},
	}
}
