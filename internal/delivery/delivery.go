// Package delivery defines delivery records, their state machine and the
// append-only delivery log.
package delivery

import (
	"errors"
	"fmt"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

// Channel is a delivery transport.
type Channel string

const (
	ChannelWeb     Channel = "web"
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelPush    Channel = "push"
	ChannelVoice   Channel = "voice"
	ChannelWebhook Channel = "webhook"
)

// Channels lists every supported channel.
var Channels = []Channel{ChannelWeb, ChannelEmail, ChannelSMS, ChannelPush, ChannelVoice, ChannelWebhook}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the state of a delivery record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusSuppressed Status = "suppressed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusSuppressed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusSuppressed
}

// Error codes stored on failed and suppressed records.
const (
	CodeConfigError   = "config_error"
	CodeProviderError = "provider_error"
	CodePanic         = "adapter_panic"
	CodeNoAdapter     = "no_adapter"
	CodeFalsePositive = "false_positive"
	CodeAggregated    = "aggregated"
)

// ErrInvalidTransition is returned when a record leaves a terminal state.
var ErrInvalidTransition = errors.New("invalid delivery status transition")

// Record is one delivery attempt of an alert on one channel.
type Record struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id"`
	AlertEventID       string         `json:"alert_event_id"`
	AlertType          alert.Type     `json:"alert_type"`
	Severity           alert.Severity `json:"severity"`
	Title              string         `json:"title"`
	Channel            Channel        `json:"channel"`
	Status             Status         `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	SentAt             *time.Time     `json:"sent_at,omitempty"`
	ErrorCode          string         `json:"error_code,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	ProviderRef        string         `json:"provider_ref,omitempty"`
	RetryCount         int            `json:"retry_count"`
	Retryable          bool           `json:"retryable"`
	IsAggregated       bool           `json:"is_aggregated"`
	AggregationGroupID string         `json:"aggregation_group_id,omitempty"`
	ReadAt             *time.Time     `json:"read_at,omitempty"`
	Score              int            `json:"score"`
	PriorityBand       string         `json:"priority_band"`
}

// Clone returns a copy of r that shares no pointers with it.
func (r *Record) Clone() *Record {
	out := *r
	if r.SentAt != nil {
		t := *r.SentAt
		out.SentAt = &t
	}
	if r.ReadAt != nil {
		t := *r.ReadAt
		out.ReadAt = &t
	}
	return &out
}

// Category returns the opt-in bucket of the record's alert type.
func (r *Record) Category() alert.Category {
	return r.AlertType.Category()
}

// Transition moves a pending record to a terminal status. Records never
// re-enter pending and terminal records never change status.
func (r *Record) Transition(to Status, now time.Time) error {
	if r.Status != StatusPending || !to.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	if to == StatusSent {
		sentAt := now
		r.SentAt = &sentAt
	}
	return nil
}

// MarkSent transitions the record to sent and stores the provider reference.
func (r *Record) MarkSent(providerRef string, now time.Time) error {
	if err := r.Transition(StatusSent, now); err != nil {
		return err
	}
	r.ProviderRef = providerRef
	r.ErrorCode = ""
	r.ErrorMessage = ""
	return nil
}

// MarkFailed transitions the record to failed with an error code and the raw message.
func (r *Record) MarkFailed(code, message string, retryable bool, now time.Time) error {
	if err := r.Transition(StatusFailed, now); err != nil {
		return err
	}
	r.ErrorCode = code
	r.ErrorMessage = message
	r.Retryable = retryable
	return nil
}

// MarkSuppressed transitions the record to suppressed with the policy reason.
func (r *Record) MarkSuppressed(code string, now time.Time) error {
	if err := r.Transition(StatusSuppressed, now); err != nil {
		return err
	}
	r.ErrorCode = code
	return nil
}

// Recipient holds the contact details of a user.
type Recipient struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	PushToken  string `json:"push_token,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}
