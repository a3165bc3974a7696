// Package generator produces synthetic alert events with configurable
// weighted distributions. It stands in for the detection subsystem in local
// and load-test runs; a non-zero seed makes the stream reproducible.
package generator

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/config"
)

const (
	// contextSiteProbability is the probability of adding a site attribute.
	contextSiteProbability = 0.3
	// contextShiftProbability is the probability of adding a shift attribute.
	contextShiftProbability = 0.2
)

// weightedValue represents a single value in a weighted distribution.
type weightedValue[T any] struct {
	value  T
	weight int
}

// Generator creates alert events according to configured distributions.
type Generator struct {
	rng          *rand.Rand
	severityDist []weightedValue[alert.Severity]
	typeDist     []weightedValue[alert.Type]
	users        []string
	now          func() time.Time
}

// New creates a generator from the producer configuration.
func New(cfg *config.Producer) (*Generator, error) {
	sevDist, err := config.ParseSeverityDistribution(cfg.SeverityDist)
	if err != nil {
		return nil, fmt.Errorf("invalid severity distribution: %w", err)
	}
	typeDist, err := config.ParseTypeDistribution(cfg.TypeDist)
	if err != nil {
		return nil, fmt.Errorf("invalid type distribution: %w", err)
	}
	if len(cfg.Users) == 0 {
		return nil, fmt.Errorf("at least one user is required")
	}

	seed := uint64(cfg.Seed)
	if cfg.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		rng:          rand.New(rand.NewPCG(seed, seed>>1|1)),
		severityDist: weighted(sevDist),
		typeDist:     weighted(typeDist),
		users:        slices.Clone(cfg.Users),
		now:          time.Now,
	}, nil
}

// weighted turns a distribution map into a slice in key order, so that a
// seeded generator yields the same sequence on every run.
func weighted[T cmp.Ordered](dist map[T]int) []weightedValue[T] {
	out := make([]weightedValue[T], 0, len(dist))
	for value, weight := range dist {
		if weight > 0 {
			out = append(out, weightedValue[T]{value: value, weight: weight})
		}
	}
	slices.SortFunc(out, func(a, b weightedValue[T]) int { return cmp.Compare(a.value, b.value) })
	return out
}

// selectWeighted selects a value from a weighted distribution using cumulative probability.
func selectWeighted[T any](rng *rand.Rand, choices []weightedValue[T]) T {
	total := 0
	for _, c := range choices {
		total += c.weight
	}
	r := rng.IntN(total)
	cumulative := 0
	for _, c := range choices {
		cumulative += c.weight
		if r < cumulative {
			return c.value
		}
	}
	return choices[len(choices)-1].value
}

func (g *Generator) pick(choices []string) string {
	return choices[g.rng.IntN(len(choices))]
}

// between returns a value in [lo, hi) rounded to two decimals.
func (g *Generator) between(lo, hi float64) float64 {
	v := lo + g.rng.Float64()*(hi-lo)
	return float64(int(v*100)) / 100
}

// Generate creates a new event with a random user, severity and alert type.
// Detected objects and typed context match the alert type.
func (g *Generator) Generate() *alert.Event {
	event := &alert.Event{
		ID:         uuid.NewString(),
		UserID:     g.pick(g.users),
		Type:       selectWeighted(g.rng, g.typeDist),
		Severity:   selectWeighted(g.rng, g.severityDist),
		OccurredAt: g.now().UTC(),
	}

	switch event.Type {
	case alert.TypeSuspiciousObject:
		class := g.pick([]string{"gun", "knife", "backpack", "person", "car"})
		event.DetectedObjects = []alert.DetectedObject{{Class: class, Confidence: g.between(0.5, 0.99)}}
		event.Context.Details = alert.SuspiciousObjectContext{
			Zone:     g.pick([]string{"entrance", "parking", "lobby", "perimeter"}),
			CameraID: fmt.Sprintf("cam-%02d", g.rng.IntN(16)+1),
		}
		event.Title = fmt.Sprintf("Suspicious %s detected", class)
		event.Message = fmt.Sprintf("A %s was detected by the camera.", class)
	case alert.TypeAnomaly:
		baseline := g.between(1, 5)
		observed := baseline * g.between(2, 5)
		event.DetectedObjects = []alert.DetectedObject{{Class: "person", Confidence: g.between(0.4, 0.95)}}
		event.Context.Details = alert.AnomalyContext{Metric: "motion", Baseline: baseline, Observed: observed}
		event.Title = "Unusual motion level"
		event.Message = fmt.Sprintf("Motion at %.1fx the usual level.", observed/baseline)
	case alert.TypeHighFrequency:
		count := g.rng.IntN(8) + 3
		for range count {
			event.DetectedObjects = append(event.DetectedObjects, alert.DetectedObject{
				Class:      g.pick([]string{"person", "car"}),
				Confidence: g.between(0.3, 0.9),
			})
		}
		event.Context.Details = alert.HighFrequencyContext{Count: count, WindowMinutes: 10}
		event.Title = "Repeated detections"
		event.Message = fmt.Sprintf("%d detections in the last 10 minutes.", count)
	case alert.TypeUnusualTime:
		event.DetectedObjects = []alert.DetectedObject{{Class: "person", Confidence: g.between(0.5, 0.95)}}
		event.Context.Details = alert.UnusualTimeContext{ExpectedStartHour: 8, ExpectedEndHour: 18}
		event.Title = "Activity outside usual hours"
		event.Message = "A person was detected outside the expected 08:00-18:00 window."
	case alert.TypeTrendChange:
		prev := g.between(5, 20)
		event.Context.Details = alert.TrendChangeContext{Metric: "daily_detections", PreviousValue: prev, CurrentValue: prev * g.between(1.5, 3)}
		event.Title = "Detection trend changed"
		event.Message = "Daily detections rose sharply compared to last week."
	}

	// Optional attributes for more realistic test data
	if g.rng.Float64() < contextSiteProbability {
		event.Context.Extra = map[string]string{"site": g.pick([]string{"hq", "warehouse", "store-12"})}
	}
	if g.rng.Float64() < contextShiftProbability {
		if event.Context.Extra == nil {
			event.Context.Extra = make(map[string]string)
		}
		event.Context.Extra["shift"] = g.pick([]string{"day", "night"})
	}
	return event
}

// GenerateTestAlert creates the fixed end-to-end check event: a critical gun
// detection that must reach every channel the user enabled.
func GenerateTestAlert(userID string, now time.Time) *alert.Event {
	return &alert.Event{
		ID:              uuid.NewString(),
		UserID:          userID,
		Type:            alert.TypeSuspiciousObject,
		Severity:        alert.SeverityCritical,
		Title:           "Weapon detected",
		Message:         "A gun was detected at the entrance.",
		DetectedObjects: []alert.DetectedObject{{Class: "gun", Confidence: 0.95}},
		OccurredAt:      now.UTC(),
		Context: alert.Context{
			Details: alert.SuspiciousObjectContext{Zone: "entrance", CameraID: "cam-01"},
			Extra:   map[string]string{"test": "true"},
		},
	}
}
