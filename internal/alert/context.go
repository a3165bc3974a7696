package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Details is the fixed-schema metadata of one alert type.
type Details interface {
	Kind() Type
}

// SuspiciousObjectContext locates a suspicious object detection.
type SuspiciousObjectContext struct {
	Zone     string `json:"zone,omitempty"`
	CameraID string `json:"camera_id,omitempty"`
}

// AnomalyContext describes a metric that left its baseline.
type AnomalyContext struct {
	Metric   string  `json:"metric,omitempty"`
	Baseline float64 `json:"baseline"`
	Observed float64 `json:"observed"`
}

// HighFrequencyContext counts detections inside a window.
type HighFrequencyContext struct {
	Count         int `json:"count"`
	WindowMinutes int `json:"window_minutes"`
}

// UnusualTimeContext carries the hours activity is normally expected in.
type UnusualTimeContext struct {
	ExpectedStartHour int `json:"expected_start_hour"`
	ExpectedEndHour   int `json:"expected_end_hour"`
}

// TrendChangeContext describes a shift in a tracked metric.
type TrendChangeContext struct {
	Metric        string  `json:"metric,omitempty"`
	PreviousValue float64 `json:"previous_value"`
	CurrentValue  float64 `json:"current_value"`
}

func (SuspiciousObjectContext) Kind() Type { return TypeSuspiciousObject }
func (AnomalyContext) Kind() Type          { return TypeAnomaly }
func (HighFrequencyContext) Kind() Type    { return TypeHighFrequency }
func (UnusualTimeContext) Kind() Type      { return TypeUnusualTime }
func (TrendChangeContext) Kind() Type      { return TypeTrendChange }

// Context is the tagged event metadata: typed details for the alert type plus
// free-form attributes. On the wire it is a flat object with a "kind" tag:
//
//	{"kind":"anomaly","metric":"motion","baseline":2,"observed":9,"extra":{"site":"hq"}}
type Context struct {
	Details Details
	Extra   map[string]string
}

// MarshalJSON writes the flat tagged form.
func (c Context) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any)
	if c.Details != nil {
		raw, err := json.Marshal(c.Details)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		fields["kind"] = c.Details.Kind()
	}
	if len(c.Extra) > 0 {
		fields["extra"] = c.Extra
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads the flat tagged form. An empty or null context leaves
// Details nil.
func (c *Context) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var head struct {
		Kind  Type              `json:"kind"`
		Extra map[string]string `json:"extra"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("invalid context: %w", err)
	}
	c.Extra = head.Extra
	c.Details = nil

	var decode func([]byte) (Details, error)
	switch head.Kind {
	case "":
		return nil
	case TypeSuspiciousObject:
		decode = decodeDetails[SuspiciousObjectContext]
	case TypeAnomaly:
		decode = decodeDetails[AnomalyContext]
	case TypeHighFrequency:
		decode = decodeDetails[HighFrequencyContext]
	case TypeUnusualTime:
		decode = decodeDetails[UnusualTimeContext]
	case TypeTrendChange:
		decode = decodeDetails[TrendChangeContext]
	default:
		return fmt.Errorf("unknown context kind %q", head.Kind)
	}

	details, err := decode(data)
	if err != nil {
		return fmt.Errorf("invalid %s context: %w", head.Kind, err)
	}
	c.Details = details
	return nil
}

func decodeDetails[T Details](data []byte) (Details, error) {
	var d T
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}
