package channel

import (
	"fmt"
	"strings"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// Body length limits in runes.
const (
	SMSMaxRunes      = 160
	PushBodyMaxRunes = 240
)

// Icon returns the severity prefix used in short messages.
func Icon(sev alert.Severity) string {
	switch sev {
	case alert.SeverityCritical:
		return "🚨"
	case alert.SeverityHigh:
		return "🔶"
	case alert.SeverityMedium:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Truncate shortens s to at most n runes, ending with "..." when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// Headline is the one-line summary shared by every medium.
func Headline(event *alert.Event) string {
	return fmt.Sprintf("%s %s", Icon(event.Severity), titleOf(event))
}

// SMSBody formats event for a text message of at most SMSMaxRunes runes.
func SMSBody(event *alert.Event) string {
	body := Headline(event)
	if event.Message != "" {
		body += ": " + event.Message
	}
	return Truncate(body, SMSMaxRunes)
}

// PushContent returns the push notification title and body.
func PushContent(event *alert.Event) (title, body string) {
	title = Headline(event)
	body = event.Message
	if body == "" {
		body = fmt.Sprintf("%s alert at %s", strings.ToUpper(string(event.Severity)), event.OccurredAt.Format("15:04"))
	}
	return title, Truncate(body, PushBodyMaxRunes)
}

// EmailSubject formats the subject line of an alert email.
func EmailSubject(event *alert.Event) string {
	return fmt.Sprintf("[Argus] %s %s alert: %s", Icon(event.Severity), strings.ToUpper(string(event.Severity)), titleOf(event))
}

// EmailBody formats the plain-text body of an alert email.
func EmailBody(rec *delivery.Record, event *alert.Event) string {
	var sb strings.Builder
	sb.WriteString("Security Alert\n")
	sb.WriteString("==============\n\n")
	fmt.Fprintf(&sb, "%s\n\n", titleOf(event))
	if event.Message != "" {
		fmt.Fprintf(&sb, "%s\n\n", event.Message)
	}
	fmt.Fprintf(&sb, "Severity: %s\n", event.Severity)
	fmt.Fprintf(&sb, "Type: %s\n", humanize(string(event.Type)))
	fmt.Fprintf(&sb, "Occurred: %s\n", event.OccurredAt.Format(time.RFC1123))
	fmt.Fprintf(&sb, "Priority: %d (%s)\n", rec.Score, rec.PriorityBand)
	if len(event.DetectedObjects) > 0 {
		sb.WriteString("\nDetected objects:\n")
		for _, obj := range event.DetectedObjects {
			fmt.Fprintf(&sb, "  - %s (%.0f%%)\n", obj.Class, obj.Confidence*100)
		}
	}
	fmt.Fprintf(&sb, "\nAlert ID: %s\n", event.ID)
	fmt.Fprintf(&sb, "Notification ID: %s\n", rec.ID)
	return sb.String()
}

// VoiceScript formats the text read out on an alert call.
func VoiceScript(event *alert.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "This is an Argus security alert. Severity %s. %s.", event.Severity, titleOf(event))
	if event.Message != "" {
		fmt.Fprintf(&sb, " %s.", strings.TrimRight(event.Message, "."))
	}
	if len(event.DetectedObjects) > 0 {
		classes := make([]string, 0, len(event.DetectedObjects))
		for _, obj := range event.DetectedObjects {
			classes = append(classes, humanize(obj.Class))
		}
		fmt.Fprintf(&sb, " Detected: %s.", strings.Join(classes, ", "))
	}
	sb.WriteString(" Please check your Argus dashboard.")
	return sb.String()
}

// Payload is the JSON document sent to webhooks and live dashboards.
type Payload struct {
	DeliveryID         string                 `json:"delivery_id"`
	AlertID            string                 `json:"alert_id"`
	UserID             string                 `json:"user_id"`
	AlertType          alert.Type             `json:"alert_type"`
	Severity           alert.Severity         `json:"severity"`
	Title              string                 `json:"title"`
	Message            string                 `json:"message,omitempty"`
	DetectedObjects    []alert.DetectedObject `json:"detected_objects,omitempty"`
	Context            alert.Context          `json:"context"`
	Score              int                    `json:"score"`
	PriorityBand       string                 `json:"priority_band"`
	AggregationGroupID string                 `json:"aggregation_group_id,omitempty"`
	OccurredAt         time.Time              `json:"occurred_at"`
	Timestamp          time.Time              `json:"timestamp"`
}

// BuildPayload builds the JSON payload for rec.
func BuildPayload(rec *delivery.Record, event *alert.Event, now time.Time) Payload {
	return Payload{
		DeliveryID:         rec.ID,
		AlertID:            event.ID,
		UserID:             event.UserID,
		AlertType:          event.Type,
		Severity:           rec.Severity,
		Title:              titleOf(event),
		Message:            event.Message,
		DetectedObjects:    event.DetectedObjects,
		Context:            event.Context,
		Score:              rec.Score,
		PriorityBand:       rec.PriorityBand,
		AggregationGroupID: rec.AggregationGroupID,
		OccurredAt:         event.OccurredAt,
		Timestamp:          now,
	}
}

func titleOf(event *alert.Event) string {
	if event.Title != "" {
		return event.Title
	}
	return humanize(string(event.Type))
}

func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
