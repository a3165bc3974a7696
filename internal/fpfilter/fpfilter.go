// Package fpfilter flags alert events that are likely noise.
package fpfilter

import (
	"fmt"
	"strings"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

const (
	// Threshold is the score at which an event is treated as a false positive.
	Threshold = 50

	benignDuringHoursPoints = 30
	lowSeverityPoints       = 20
	lowConfidencePoints     = 25

	normalHoursStart = 8
	normalHoursEnd   = 20 // inclusive
	lowConfidence    = 0.5
)

var benignClasses = map[string]struct{}{
	"car": {}, "truck": {}, "bus": {}, "bicycle": {}, "motorcycle": {},
	"dog": {}, "cat": {}, "bird": {},
	"chair": {}, "potted_plant": {}, "tv": {}, "bench": {},
	"umbrella": {}, "backpack": {}, "handbag": {},
}

// Result is the verdict of Classify.
type Result struct {
	IsFalsePositive bool     `json:"is_false_positive"`
	Confidence      float64  `json:"confidence"`
	Score           int      `json:"score"`
	Reasons         []string `json:"reasons,omitempty"`
}

// Classify scores event against the false-positive heuristics.
func Classify(event *alert.Event) Result {
	var (
		score   int
		reasons []string
	)

	hour := event.OccurredAt.Hour()
	if hour >= normalHoursStart && hour <= normalHoursEnd {
		if class, ok := firstBenign(event.DetectedObjects); ok {
			score += benignDuringHoursPoints
			reasons = append(reasons, fmt.Sprintf("Commonly benign object %q during normal hours", class))
		}
	}

	if event.Severity == alert.SeverityLow && event.Type != alert.TypeSuspiciousObject && event.Type != alert.TypeAnomaly {
		score += lowSeverityPoints
		reasons = append(reasons, "Low severity alert of a non-critical type")
	}

	if avg, ok := event.AverageConfidence(); ok && avg < lowConfidence {
		score += lowConfidencePoints
		reasons = append(reasons, fmt.Sprintf("Low average detection confidence (%.2f)", avg))
	}

	return Result{
		IsFalsePositive: score >= Threshold,
		Confidence:      float64(min(score, 100)) / 100,
		Score:           score,
		Reasons:         reasons,
	}
}

func firstBenign(objects []alert.DetectedObject) (string, bool) {
	for _, obj := range objects {
		class := strings.ToLower(obj.Class)
		if _, ok := benignClasses[class]; ok {
			return class, true
		}
	}
	return "", false
}
