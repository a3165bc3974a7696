package fpfilter

import (
	"testing"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

func event(hour int, typ alert.Type, sev alert.Severity, objects ...alert.DetectedObject) *alert.Event {
	return &alert.Event{
		ID:              "evt-1",
		UserID:          "user-1",
		Type:            typ,
		Severity:        sev,
		DetectedObjects: objects,
		OccurredAt:      time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC),
	}
}

func TestClassify(t *testing.T) {
	car04 := alert.DetectedObject{Class: "car", Confidence: 0.4}
	car09 := alert.DetectedObject{Class: "Car", Confidence: 0.9}
	gun09 := alert.DetectedObject{Class: "gun", Confidence: 0.9}

	tests := []struct {
		name      string
		event     *alert.Event
		wantScore int
		wantFP    bool
		reasons   int
	}{
		{
			name:      "benign car at 14:00 low unusual_time",
			event:     event(14, alert.TypeUnusualTime, alert.SeverityLow, car04),
			wantScore: 75,
			wantFP:    true,
			reasons:   3,
		},
		{
			name:      "benign and low severity",
			event:     event(14, alert.TypeUnusualTime, alert.SeverityLow, car09),
			wantScore: 50,
			wantFP:    true,
			reasons:   2,
		},
		{
			name:      "benign at night",
			event:     event(2, alert.TypeUnusualTime, alert.SeverityMedium, car09),
			wantScore: 0,
			wantFP:    false,
		},
		{
			name:      "normal hours boundaries",
			event:     event(20, alert.TypeHighFrequency, alert.SeverityMedium, car09),
			wantScore: 30,
			wantFP:    false,
			reasons:   1,
		},
		{
			name:      "low severity suspicious object",
			event:     event(14, alert.TypeSuspiciousObject, alert.SeverityLow, gun09),
			wantScore: 0,
			wantFP:    false,
		},
		{
			name:      "low confidence only",
			event:     event(23, alert.TypeAnomaly, alert.SeverityHigh, alert.DetectedObject{Class: "person", Confidence: 0.2}),
			wantScore: 25,
			wantFP:    false,
			reasons:   1,
		},
		{
			name:      "no objects low trend change",
			event:     event(10, alert.TypeTrendChange, alert.SeverityLow),
			wantScore: 20,
			wantFP:    false,
			reasons:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.event)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.IsFalsePositive != tt.wantFP {
				t.Errorf("IsFalsePositive = %v, want %v", got.IsFalsePositive, tt.wantFP)
			}
			if want := float64(tt.wantScore) / 100; got.Confidence != want {
				t.Errorf("Confidence = %v, want %v", got.Confidence, want)
			}
			if len(got.Reasons) != tt.reasons {
				t.Errorf("Reasons = %v, want %d entries", got.Reasons, tt.reasons)
			}
		})
	}
}

func TestClassify_NormalHoursWindow(t *testing.T) {
	dog := alert.DetectedObject{Class: "dog", Confidence: 0.9}
	for hour := 0; hour < 24; hour++ {
		got := Classify(event(hour, alert.TypeAnomaly, alert.SeverityMedium, dog))
		want := 0
		if hour >= 8 && hour <= 20 {
			want = 30
		}
		if got.Score != want {
			t.Errorf("hour %d: Score = %d, want %d", hour, got.Score, want)
		}
	}
}
