package delivery

import (
	"time"

	"github.com/google/uuid"
)

// Event names written to the delivery log.
const (
	EventCreated    = "created"
	EventFailed     = "failed"
	EventRetry      = "retry"
	EventSuppressed = "suppressed"
	EventAggregated = "aggregated"
	EventMarkedRead = "marked_read"
)

// SentEvent returns the log event name for a successful send on ch, e.g. sent_sms.
func SentEvent(ch Channel) string {
	return "sent_" + string(ch)
}

// LogEntry is one append-only audit entry for a delivery record.
type LogEntry struct {
	ID         string            `json:"id"`
	DeliveryID string            `json:"delivery_id"`
	UserID     string            `json:"user_id"`
	Event      string            `json:"event"`
	Details    map[string]string `json:"details,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewLogEntry builds a log entry for rec.
func NewLogEntry(rec *Record, event string, details map[string]string, now time.Time) *LogEntry {
	return &LogEntry{
		ID:         uuid.NewString(),
		DeliveryID: rec.ID,
		UserID:     rec.UserID,
		Event:      event,
		Details:    details,
		CreatedAt:  now,
	}
}

// TerminalEntry builds the log entry that records rec's current terminal status.
func TerminalEntry(rec *Record, now time.Time) *LogEntry {
	details := map[string]string{"channel": string(rec.Channel)}
	var event string
	switch rec.Status {
	case StatusSent:
		event = SentEvent(rec.Channel)
		if rec.ProviderRef != "" {
			details["provider_ref"] = rec.ProviderRef
		}
	case StatusFailed:
		event = EventFailed
		details["error_code"] = rec.ErrorCode
		details["error_message"] = rec.ErrorMessage
		if rec.Retryable {
			details["retryable"] = "true"
		} else {
			details["retryable"] = "false"
		}
	case StatusSuppressed:
		event = EventSuppressed
		details["reason"] = rec.ErrorCode
	default:
		event = EventCreated
	}
	if rec.AggregationGroupID != "" {
		details["aggregation_group_id"] = rec.AggregationGroupID
	}
	return NewLogEntry(rec, event, details, now)
}
