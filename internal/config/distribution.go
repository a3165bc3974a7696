package config

import (
	"fmt"
	"strings"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

// ParseDistribution parses a weighted distribution string into a map of values to percentages.
//
// Format: "KEY1:PERCENT1,KEY2:PERCENT2,..." where percentages must sum to 100.
//
// Example: "high:30,medium:40,low:20,critical:10"
func ParseDistribution(distStr string) (map[string]int, error) {
	if distStr == "" {
		return nil, fmt.Errorf("distribution string cannot be empty")
	}

	result := make(map[string]int)
	totalPercent := 0
	for _, part := range strings.Split(distStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, ":")
		if !ok || strings.Contains(value, ":") {
			return nil, fmt.Errorf("invalid distribution format: %s (expected KEY:PERCENT)", part)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty key in %s", part)
		}

		var percent int
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &percent); err != nil {
			return nil, fmt.Errorf("invalid percentage in %s: %w", part, err)
		}
		if percent < 0 || percent > 100 {
			return nil, fmt.Errorf("percentage must be 0-100, got %d in %s", percent, part)
		}

		result[key] += percent
		totalPercent += percent
	}

	if totalPercent != 100 {
		return nil, fmt.Errorf("distribution percentages must sum to 100, got %d", totalPercent)
	}
	return result, nil
}

// ParseSeverityDistribution parses a distribution keyed by severity.
func ParseSeverityDistribution(distStr string) (map[alert.Severity]int, error) {
	raw, err := ParseDistribution(distStr)
	if err != nil {
		return nil, err
	}
	out := make(map[alert.Severity]int, len(raw))
	for key, pct := range raw {
		sev, err := alert.ParseSeverity(key)
		if err != nil {
			return nil, err
		}
		out[sev] += pct
	}
	return out, nil
}

// ParseTypeDistribution parses a distribution keyed by alert type.
func ParseTypeDistribution(distStr string) (map[alert.Type]int, error) {
	raw, err := ParseDistribution(distStr)
	if err != nil {
		return nil, err
	}
	out := make(map[alert.Type]int, len(raw))
	for key, pct := range raw {
		t := alert.Type(strings.ToLower(key))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown alert type %q", key)
		}
		out[t] += pct
	}
	return out, nil
}
