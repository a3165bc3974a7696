// Package alert defines the AlertEvent consumed from the detection subsystem
// and the enumerations shared by the rest of the pipeline.
package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type is the kind of security-relevant condition that raised an event.
type Type string

const (
	TypeSuspiciousObject Type = "suspicious_object"
	TypeAnomaly          Type = "anomaly"
	TypeHighFrequency    Type = "high_frequency"
	TypeUnusualTime      Type = "unusual_time"
	TypeTrendChange      Type = "trend_change"
)

// Types lists every known alert type.
var Types = []Type{
	TypeSuspiciousObject,
	TypeAnomaly,
	TypeHighFrequency,
	TypeUnusualTime,
	TypeTrendChange,
}

// Valid reports whether t is a known alert type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Category is the preference opt-in bucket an alert type belongs to.
type Category string

const (
	CategorySuspiciousObjects Category = "suspicious_objects"
	CategoryAnomalies         Category = "anomalies"
	CategoryHighFrequency     Category = "high_frequency"
	CategoryUnusualTime       Category = "unusual_time"
)

// Category maps the alert type to its opt-in bucket. Trend changes are
// opted into together with anomalies.
func (t Type) Category() Category {
	switch t {
	case TypeSuspiciousObject:
		return CategorySuspiciousObjects
	case TypeAnomaly, TypeTrendChange:
		return CategoryAnomalies
	case TypeHighFrequency:
		return CategoryHighFrequency
	case TypeUnusualTime:
		return CategoryUnusualTime
	default:
		return ""
	}
}

// Types returns the alert types opted into through c.
func (c Category) Types() []Type {
	var out []Type
	for _, t := range Types {
		if t.Category() == c {
			out = append(out, t)
		}
	}
	return out
}

// Severity is the ordinal label attached to an event by the detection subsystem.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ParseSeverity converts a case-insensitive string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Rank() == 0 {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Rank returns 1..4 for low..critical and 0 for unknown values.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s meets or exceeds floor.
func (s Severity) AtLeast(floor Severity) bool {
	return s.Rank() >= floor.Rank()
}

// Escalate bumps the severity one band, capped at critical.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return s
	}
}

// DetectedObject is one object found by the detection subsystem.
type DetectedObject struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Event is an incoming security-relevant occurrence requiring notification triage.
// Events are immutable once created.
type Event struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	Type            Type             `json:"alert_type"`
	Severity        Severity         `json:"severity"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	DetectedObjects []DetectedObject `json:"detected_objects,omitempty"`
	OccurredAt      time.Time        `json:"occurred_at"`
	Context         Context          `json:"context"`
}

// Category returns the opt-in bucket of the event's alert type.
func (e *Event) Category() Category {
	return e.Type.Category()
}

// AverageConfidence returns the mean detection confidence and false when the
// event carries no detected objects.
func (e *Event) AverageConfidence() (float64, bool) {
	if len(e.DetectedObjects) == 0 {
		return 0, false
	}
	var sum float64
	for _, obj := range e.DetectedObjects {
		sum += obj.Confidence
	}
	return sum / float64(len(e.DetectedObjects)), true
}

// Validate checks that the event is well formed.
func (e *Event) Validate() error {
	var errs []error
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if e.UserID == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	if !e.Type.Valid() {
		errs = append(errs, fmt.Errorf("unknown alert_type %q", e.Type))
	}
	if !e.Severity.Valid() {
		errs = append(errs, fmt.Errorf("unknown severity %q", e.Severity))
	}
	if e.OccurredAt.IsZero() {
		errs = append(errs, errors.New("occurred_at is required"))
	}
	for i, obj := range e.DetectedObjects {
		if obj.Confidence < 0 || obj.Confidence > 1 {
			errs = append(errs, fmt.Errorf("detected_objects[%d].confidence %v outside [0,1]", i, obj.Confidence))
		}
	}
	if d := e.Context.Details; d != nil && d.Kind() != e.Type {
		errs = append(errs, fmt.Errorf("context kind %q does not match alert_type %q", d.Kind(), e.Type))
	}
	return errors.Join(errs...)
}
