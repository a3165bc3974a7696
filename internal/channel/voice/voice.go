// Package voice delivers alerts as phone calls through the Twilio Calls API.
package voice

import (
	"context"
	"encoding/xml"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// CallAPI is the subset of the Twilio API service used for calls.
type CallAPI interface {
	CreateCall(params *twilioapi.CreateCallParams) (*twilioapi.ApiV2010Call, error)
}

// Config holds Twilio credentials and the calling number.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Configured reports whether credentials and a caller id are set.
func (c Config) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// Adapter implements channel.Adapter for voice calls.
type Adapter struct {
	api  CallAPI
	from string
}

var _ channel.Adapter = (*Adapter)(nil)

// New creates a voice adapter. Missing credentials yield an adapter that
// fails every delivery with a configuration error.
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

// NewWithAPI creates a voice adapter around an existing API service.
func NewWithAPI(api CallAPI, from string) *Adapter {
	return &Adapter{api: api, from: from}
}

// Channel returns delivery.ChannelVoice.
func (a *Adapter) Channel() delivery.Channel {
	return delivery.ChannelVoice
}

// Deliver places a call that reads the alert out twice.
func (a *Adapter) Deliver(ctx context.Context, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) (channel.Result, error) {
	if a.api == nil || a.from == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelVoice, "Twilio credentials are not configured")
	}
	if recipient == nil || strings.TrimSpace(recipient.Phone) == "" {
		return channel.Result{}, channel.NewConfigError(delivery.ChannelVoice, "no phone number on file for user %s", rec.UserID)
	}
	if err := ctx.Err(); err != nil {
		return channel.Result{}, err
	}

	twiml, err := TwiML(channel.VoiceScript(event))
	if err != nil {
		return channel.Result{}, err
	}

	params := &twilioapi.CreateCallParams{}
	params.SetTo(strings.TrimSpace(recipient.Phone))
	params.SetFrom(a.from)
	params.SetTwiml(twiml)

	resp, err := a.api.CreateCall(params)
	if err != nil {
		return channel.Result{}, channel.TwilioError(delivery.ChannelVoice, err)
	}

	var sid string
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Info("Successfully placed voice notification",
		"delivery_id", rec.ID,
		"alert_id", event.ID,
		"user_id", rec.UserID,
		"sid", sid,
	)
	return channel.Result{ProviderRef: sid}, nil
}

type sayVerb struct {
	Voice string `xml:"voice,attr"`
	Loop  int    `xml:"loop,attr"`
	Text  string `xml:",chardata"`
}

type response struct {
	XMLName xml.Name `xml:"Response"`
	Say     sayVerb  `xml:"Say"`
}

// TwiML renders script as a <Say> response.
func TwiML(script string) (string, error) {
	out, err := xml.Marshal(response{Say: sayVerb{Voice: "alice", Loop: 2, Text: script}})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
