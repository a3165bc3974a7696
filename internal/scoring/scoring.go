// Package scoring computes the 0-100 priority score of an alert event from
// weighted factors.
package scoring

import (
	"math"
	"strings"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

// Factor maxima. Each factor is capped at its maximum before summing.
const (
	MaxSeverity    = 30
	MaxTimeContext = 15
	MaxObjectRisk  = 25
	MaxFrequency   = 10
	MaxConfidence  = 10
	MaxUserHistory = 10
)

// Band is the priority band derived from a score.
type Band string

const (
	BandLow      Band = "low"
	BandMedium   Band = "medium"
	BandHigh     Band = "high"
	BandCritical Band = "critical"
)

// BandFor maps a score to its band: critical >= 80, high >= 60, medium >= 40.
func BandFor(score int) Band {
	switch {
	case score >= 80:
		return BandCritical
	case score >= 60:
		return BandHigh
	case score >= 40:
		return BandMedium
	default:
		return BandLow
	}
}

var (
	highRiskClasses   = map[string]struct{}{"gun": {}, "weapon": {}, "knife": {}, "fire": {}}
	mediumRiskClasses = map[string]struct{}{"person": {}, "scissors": {}, "broken_glass": {}, "crowbar": {}}
)

// EngagementStats describes how the user engages with this kind of alert.
type EngagementStats struct {
	CategoryEnabled bool
	InQuietHours    bool
}

// Factors holds the points awarded per factor.
type Factors struct {
	Severity    int `json:"severity"`
	TimeContext int `json:"time_context"`
	ObjectRisk  int `json:"object_risk"`
	Frequency   int `json:"frequency"`
	Confidence  int `json:"confidence"`
	UserHistory int `json:"user_history"`
}

// Total sums the factors.
func (f Factors) Total() int {
	return f.Severity + f.TimeContext + f.ObjectRisk + f.Frequency + f.Confidence + f.UserHistory
}

// ScoredAlert is an event with its priority score and false-positive verdict.
type ScoredAlert struct {
	Event                   *alert.Event `json:"event"`
	Score                   int          `json:"score"`
	Band                    Band         `json:"priority_band"`
	Explanation             string       `json:"explanation"`
	Factors                 Factors      `json:"factors"`
	IsFalsePositive         bool         `json:"is_false_positive"`
	FalsePositiveConfidence float64      `json:"false_positive_confidence"`
	FalsePositiveReasons    []string     `json:"false_positive_reasons,omitempty"`
}

// Score computes the priority of event. recentSimilarCount is the number of
// alerts of the same type for the user in the trailing 24 hours; engagement
// may be nil when nothing is known about the user.
func Score(event *alert.Event, recentSimilarCount int, engagement *EngagementStats) *ScoredAlert {
	f := Factors{
		Severity:    capAt(severityPoints(event.Severity), MaxSeverity),
		TimeContext: capAt(timeContextPoints(event.OccurredAt.Hour()), MaxTimeContext),
		ObjectRisk:  capAt(objectRiskPoints(event), MaxObjectRisk),
		Frequency:   capAt(frequencyPoints(recentSimilarCount), MaxFrequency),
		Confidence:  capAt(confidencePoints(event), MaxConfidence),
		UserHistory: capAt(userHistoryPoints(engagement), MaxUserHistory),
	}

	score := capAt(f.Total(), 100)
	return &ScoredAlert{
		Event:       event,
		Score:       score,
		Band:        BandFor(score),
		Explanation: explain(f),
		Factors:     f,
	}
}

func severityPoints(sev alert.Severity) int {
	switch sev {
	case alert.SeverityLow:
		return 5
	case alert.SeverityMedium:
		return 15
	case alert.SeverityHigh:
		return 25
	case alert.SeverityCritical:
		return 30
	default:
		return 0
	}
}

func timeContextPoints(hour int) int {
	switch {
	case hour < 6 || hour > 22:
		return 15
	case hour <= 9 || hour >= 18:
		return 10
	default:
		return 5
	}
}

func objectRiskPoints(event *alert.Event) int {
	if len(event.DetectedObjects) == 0 {
		switch event.Type {
		case alert.TypeSuspiciousObject:
			return 25
		case alert.TypeAnomaly:
			return 20
		default:
			return 10
		}
	}

	points := 5
	for _, obj := range event.DetectedObjects {
		class := strings.ToLower(obj.Class)
		if _, ok := highRiskClasses[class]; ok {
			return 25
		}
		if _, ok := mediumRiskClasses[class]; ok {
			points = 15
		}
	}
	return points
}

func frequencyPoints(count int) int {
	switch {
	case count > 10:
		return 10
	case count > 5:
		return 7
	case count > 2:
		return 5
	default:
		return 3
	}
}

func confidencePoints(event *alert.Event) int {
	avg, ok := event.AverageConfidence()
	if !ok {
		return 0
	}
	return int(math.Round(avg * 10))
}

func userHistoryPoints(engagement *EngagementStats) int {
	points := 5
	if engagement == nil {
		return points
	}
	if engagement.CategoryEnabled {
		points += 3
	}
	if engagement.InQuietHours {
		points -= 2
	}
	return max(points, 0)
}

func capAt(v, limit int) int {
	return min(max(v, 0), limit)
}

func explain(f Factors) string {
	var parts []string
	if f.Severity >= 25 {
		parts = append(parts, "High severity alert")
	}
	if f.TimeContext >= 10 {
		parts = append(parts, "Occurred outside normal hours")
	}
	if f.ObjectRisk >= 20 {
		parts = append(parts, "High-risk objects detected")
	}
	if f.Frequency >= 7 {
		parts = append(parts, "Frequent similar alerts")
	}
	if len(parts) == 0 {
		return "Standard priority alert"
	}
	return strings.Join(parts, "; ")
}
