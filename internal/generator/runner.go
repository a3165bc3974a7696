package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/config"
)

const (
	// progressLogInterval defines how often to log progress in continuous mode
	progressLogInterval = 5 * time.Second
	// burstProgressInterval defines how often to log progress in burst mode (every N alerts)
	burstProgressInterval = 100
)

// Publisher publishes generated events.
type Publisher interface {
	PublishAlert(ctx context.Context, event *alert.Event) error
}

// Recorder receives publish metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordProcessed(latency time.Duration)
	RecordPublished()
	RecordError()
}

type noopRecorder struct{}

func (noopRecorder) RecordProcessed(time.Duration) {}
func (noopRecorder) RecordPublished()              {}
func (noopRecorder) RecordError()                  {}

// Runner drives a generator in one of the producer modes.
type Runner struct {
	generator *Generator
	publisher Publisher
	metrics   Recorder
}

// NewRunner creates a runner. rec may be nil.
func NewRunner(gen *Generator, pub Publisher, rec Recorder) *Runner {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Runner{generator: gen, publisher: pub, metrics: rec}
}

// Run runs the mode selected by cfg.
func (r *Runner) Run(ctx context.Context, cfg *config.Producer) error {
	switch cfg.Mode {
	case config.ModeBurst:
		return r.Burst(ctx, cfg.BurstSize)
	case config.ModeContinuous:
		return r.Continuous(ctx, cfg.RPS, cfg.Duration)
	case config.ModeTest:
		return r.Test(ctx, cfg.RPS, cfg.Duration, cfg.BurstSize)
	case config.ModeSingleTest:
		return r.SingleTest(ctx)
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// SingleTest publishes one test alert for the first configured user.
func (r *Runner) SingleTest(ctx context.Context) error {
	event := GenerateTestAlert(r.generator.users[0], r.generator.now())
	if err := r.publish(ctx, event, 1); err != nil {
		return err
	}
	logAlertDetails("Published single test alert", event)
	return nil
}

// Burst sends a fixed number of alerts immediately without rate limiting.
func (r *Runner) Burst(ctx context.Context, burstSize int) error {
	return r.burst(ctx, burstSize, false)
}

// Continuous generates and publishes alerts at a fixed rate for a duration.
func (r *Runner) Continuous(ctx context.Context, rps float64, duration time.Duration) error {
	return r.continuous(ctx, rps, duration, false)
}

// Test sends varied alerts with one test alert first, in burst mode when
// burstSize > 0 and continuous mode otherwise.
func (r *Runner) Test(ctx context.Context, rps float64, duration time.Duration, burstSize int) error {
	if burstSize > 0 {
		return r.burst(ctx, burstSize, true)
	}
	return r.continuous(ctx, rps, duration, true)
}

func (r *Runner) next(withTestAlert bool, sent int) *alert.Event {
	if withTestAlert && sent == 0 {
		return GenerateTestAlert(r.generator.pick(r.generator.users), r.generator.now())
	}
	return r.generator.Generate()
}

func (r *Runner) burst(ctx context.Context, burstSize int, withTestAlert bool) error {
	slog.Info("Starting burst mode", "total_alerts", burstSize, "test_alert", withTestAlert)

	startTime := time.Now()
	for i := range burstSize {
		select {
		case <-ctx.Done():
			slog.Warn("Burst mode cancelled", "sent", i, "requested", burstSize)
			return ctx.Err()
		default:
		}

		event := r.next(withTestAlert, i)
		if err := r.publish(ctx, event, i+1); err != nil {
			return err
		}

		// Log first alert with full details for verification
		if i == 0 {
			logAlertDetails("Published first alert (sample)", event)
		}
		if (i+1)%burstProgressInterval == 0 {
			slog.Info("Burst progress",
				"sent", i+1,
				"total", burstSize,
				"rate_per_sec", formatRate(calculateRate(i+1, time.Since(startTime))),
			)
		}
	}

	elapsed := time.Since(startTime)
	slog.Info("Burst mode completed",
		"total_sent", burstSize,
		"duration_sec", formatDuration(elapsed),
		"rate_per_sec", formatRate(calculateRate(burstSize, elapsed)),
	)
	return nil
}

func (r *Runner) continuous(ctx context.Context, rps float64, duration time.Duration, withTestAlert bool) error {
	slog.Info("Starting continuous mode",
		"target_rps", rps,
		"duration", duration,
		"test_alert", withTestAlert,
	)

	// Calculate ticker interval to achieve target RPS
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rps))
	defer ticker.Stop()

	deadline := time.Now().Add(duration)
	startTime := time.Now()
	lastLog := startTime
	totalSent := 0

	for {
		select {
		case <-ctx.Done():
			slog.Warn("Continuous mode cancelled",
				"sent", totalSent,
				"duration_requested", duration,
			)
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				elapsed := time.Since(startTime)
				slog.Info("Duration reached",
					"total_sent", totalSent,
					"duration_sec", formatDuration(elapsed),
					"target_rps", rps,
					"actual_rps", formatRate(calculateRate(totalSent, elapsed)),
				)
				return nil
			}

			event := r.next(withTestAlert, totalSent)
			if err := r.publish(ctx, event, totalSent+1); err != nil {
				return err
			}
			totalSent++

			if totalSent == 1 {
				logAlertDetails("Published first alert (sample)", event)
			}
			if time.Since(lastLog) >= progressLogInterval {
				elapsed := time.Since(startTime)
				slog.Info("Progress update",
					"sent", totalSent,
					"target_rps", rps,
					"actual_rps", formatRate(calculateRate(totalSent, elapsed)),
					"elapsed_sec", formatDuration(elapsed),
				)
				lastLog = time.Now()
			}
		}
	}
}

// publish sends one event and records the outcome. Cancellation is returned
// as ctx.Err() so callers can tell it apart from broker failures.
func (r *Runner) publish(ctx context.Context, event *alert.Event, alertNumber int) error {
	start := time.Now()
	if err := r.publisher.PublishAlert(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			slog.Warn("Publish cancelled", "sent", alertNumber-1)
			return context.Canceled
		}
		r.metrics.RecordError()
		slog.Error("Failed to publish alert",
			"alert_id", event.ID,
			"user_id", event.UserID,
			"severity", event.Severity,
			"alert_type", event.Type,
			"alert_number", alertNumber,
			"error", err,
		)
		return fmt.Errorf("failed to publish alert %d: %w", alertNumber, err)
	}
	r.metrics.RecordProcessed(time.Since(start))
	r.metrics.RecordPublished()
	return nil
}

// logAlertDetails logs alert details in a structured format.
func logAlertDetails(message string, event *alert.Event) {
	slog.Info(message,
		"alert_id", event.ID,
		"user_id", event.UserID,
		"severity", event.Severity,
		"alert_type", event.Type,
		"occurred_at", event.OccurredAt,
	)
}

// calculateRate calculates the rate (items per second) given count and elapsed time.
func calculateRate(count int, elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(count) / seconds
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%.2f", rate)
}
