package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/retry"
)

type stubAdapter struct{ ch delivery.Channel }

func (s stubAdapter) Channel() delivery.Channel { return s.ch }
func (s stubAdapter) Deliver(context.Context, *delivery.Record, *alert.Event, *delivery.Recipient) (Result, error) {
	return Result{ProviderRef: string(s.ch)}, nil
}

func testEvent() *alert.Event {
	return &alert.Event{
		ID:       "evt-1",
		UserID:   "user-1",
		Type:     alert.TypeSuspiciousObject,
		Severity: alert.SeverityCritical,
		Title:    "Weapon detected",
		Message:  "Gun detected at the front door",
		DetectedObjects: []alert.DetectedObject{
			{Class: "gun", Confidence: 0.95},
		},
		OccurredAt: time.Date(2026, 3, 1, 23, 5, 0, 0, time.UTC),
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubAdapter{delivery.ChannelWeb}, stubAdapter{delivery.ChannelSMS})
	if _, ok := r.Get(delivery.ChannelWeb); !ok {
		t.Error("web adapter not registered")
	}
	if _, ok := r.Get(delivery.ChannelVoice); ok {
		t.Error("voice adapter should not be registered")
	}
	r.Register(stubAdapter{delivery.ChannelEmail})
	got := r.List()
	want := []delivery.Channel{delivery.ChannelEmail, delivery.ChannelSMS, delivery.ChannelWeb}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestErrors(t *testing.T) {
	cfgErr := NewConfigError(delivery.ChannelSMS, "no phone number on file for user %s", "user-1")
	if ErrorCode(cfgErr) != delivery.CodeConfigError {
		t.Errorf("ErrorCode(config) = %q", ErrorCode(cfgErr))
	}
	if retry.IsRetryable(cfgErr) {
		t.Error("config errors must not be retryable")
	}
	if cfgErr.Error() != "sms: no phone number on file for user user-1" {
		t.Errorf("Error() = %q", cfgErr.Error())
	}

	timeout := errors.New("i/o timeout")
	transient := ProviderError(delivery.ChannelEmail, timeout)
	var te *TransientError
	if !errors.As(transient, &te) || !errors.Is(transient, timeout) {
		t.Errorf("ProviderError(timeout) = %#v, want TransientError wrapping cause", transient)
	}
	if !retry.IsRetryable(transient) || ErrorCode(transient) != delivery.CodeProviderError {
		t.Error("transient provider errors should be retryable provider_error")
	}

	permanent := ProviderError(delivery.ChannelEmail, errors.New("Email address is not verified"))
	if errors.As(permanent, &te) || retry.IsRetryable(permanent) {
		t.Error("permanent provider errors must not be transient")
	}
	var pe *PermanentError
	if !errors.As(permanent, &pe) {
		t.Errorf("ProviderError(not verified) = %#v, want PermanentError", permanent)
	}
	if ProviderError(delivery.ChannelEmail, nil) != nil {
		t.Error("ProviderError(nil) should be nil")
	}
}

func TestStatusError(t *testing.T) {
	cause := errors.New("provider said no")
	tests := []struct {
		status    int
		retryable bool
	}{
		{429, true},
		{408, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
		{0, false},
	}
	for _, tt := range tests {
		err := StatusError(delivery.ChannelPush, tt.status, cause)
		if got := retry.IsRetryable(err); got != tt.retryable {
			t.Errorf("StatusError(%d) retryable = %v, want %v", tt.status, got, tt.retryable)
		}
		if !errors.Is(err, cause) {
			t.Errorf("StatusError(%d) lost its cause", tt.status)
		}
	}
}

func TestIcon(t *testing.T) {
	tests := map[alert.Severity]string{
		alert.SeverityLow:      "ℹ️",
		alert.SeverityMedium:   "⚠️",
		alert.SeverityHigh:     "🔶",
		alert.SeverityCritical: "🚨",
	}
	for sev, want := range tests {
		if got := Icon(sev); got != want {
			t.Errorf("Icon(%s) = %q, want %q", sev, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestSMSBody(t *testing.T) {
	event := testEvent()
	got := SMSBody(event)
	if got != "🚨 Weapon detected: Gun detected at the front door" {
		t.Errorf("SMSBody() = %q", got)
	}

	event.Message = strings.Repeat("intruder ", 40)
	got = SMSBody(event)
	if n := utf8.RuneCountInString(got); n != SMSMaxRunes {
		t.Errorf("SMSBody() length = %d runes, want %d", n, SMSMaxRunes)
	}
	if !strings.HasPrefix(got, "🚨") || !strings.HasSuffix(got, "...") {
		t.Errorf("SMSBody() = %q", got)
	}
}

func TestPushContent(t *testing.T) {
	event := testEvent()
	title, body := PushContent(event)
	if title != "🚨 Weapon detected" || body != event.Message {
		t.Errorf("PushContent() = %q, %q", title, body)
	}

	event.Message = ""
	event.Title = ""
	title, body = PushContent(event)
	if title != "🚨 Suspicious object" || body != "CRITICAL alert at 23:05" {
		t.Errorf("PushContent() without text = %q, %q", title, body)
	}
}

func TestEmailAndVoice(t *testing.T) {
	event := testEvent()
	rec := &delivery.Record{ID: "rec-1", Score: 91, PriorityBand: "critical"}

	if got := EmailSubject(event); got != "[Argus] 🚨 CRITICAL alert: Weapon detected" {
		t.Errorf("EmailSubject() = %q", got)
	}
	body := EmailBody(rec, event)
	for _, want := range []string{"Weapon detected", "Severity: critical", "Priority: 91 (critical)", "gun (95%)", "Notification ID: rec-1"} {
		if !strings.Contains(body, want) {
			t.Errorf("EmailBody() missing %q:\n%s", want, body)
		}
	}

	script := VoiceScript(event)
	want := "This is an Argus security alert. Severity critical. Weapon detected. Gun detected at the front door. Detected: Gun. Please check your Argus dashboard."
	if script != want {
		t.Errorf("VoiceScript() = %q, want %q", script, want)
	}
}

func TestBuildPayload(t *testing.T) {
	event := testEvent()
	rec := &delivery.Record{ID: "rec-1", Severity: alert.SeverityCritical, Score: 91, PriorityBand: "critical", AggregationGroupID: "grp-1"}
	now := time.Date(2026, 3, 1, 23, 6, 0, 0, time.UTC)

	p := BuildPayload(rec, event, now)
	if p.DeliveryID != "rec-1" || p.AlertID != "evt-1" || p.UserID != "user-1" || p.AggregationGroupID != "grp-1" {
		t.Errorf("BuildPayload() = %+v", p)
	}
	if !p.Timestamp.Equal(now) || p.Score != 91 {
		t.Errorf("BuildPayload() = %+v", p)
	}
}
