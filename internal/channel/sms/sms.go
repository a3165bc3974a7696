// Package sms delivers alerts as text messages through the Twilio Messages API.
package sms

import (
	"context"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// MessageAPI is the subset of the Twilio API service used for SMS.
type MessageAPI interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Config holds Twilio credentials and the sending number.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Configured reports whether credentials and a sender are set.
func (c Config) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// Adapter implements channel.Adapter for SMS.
type Adapter struct {
	api  MessageAPI
	from string
}

var _ channel.Adapter = (*Adapter)(nil)

// New creates an SMS adapter. Missing credentials yield an adapter that fails
// every delivery with a configuration error.
func New(cfg Config) *Adapter {
	if !cfg.Configured() {
		return &Adapter{}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Adapter{api: client.Api, from: cfg.FromNumber}
}

// NewWithAPI creates an SMS adapter around an existing API service.
func NewWithAPI(api MessageAPI, from string) *Adapter {
	return &Adapter{api: api, from: from}
}

// Channel returns delivery.ChannelSMS.
func (a *Adapter) Channel() delivery.Channel {
	return delivery.ChannelSMS
}

// Deliver texts the alert to the recipient's phone.
func (a *Adapter) Deliver(ctx context.Context, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) (channel.Result, error) {
	if a.api == nil || a.from == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelSMS, "Twilio credentials are not configured")
	}
	if recipient == nil || strings.TrimSpace(recipient.Phone) == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelSMS, "no phone number on file for user %s", rec.UserID)
	}
	if err := ctx.Err(); err != nil {
		return channel.Result{}, err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(strings.TrimSpace(recipient.Phone))
	params.SetFrom(a.from)
	params.SetBody(channel.SMSBody(event))

	resp, err := a.api.CreateMessage(params)
	if err != nil {
		return channel.Result{}, channel.TwilioError(delivery.ChannelSMS, err)
	}

	var sid string
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Info("Successfully sent SMS notification",
		"delivery_id", rec.ID,
		"alert_id", event.ID,
		"user_id", rec.UserID,
		"sid", sid,
	)
	return channel.Result{ProviderRef: sid}, nil
}
