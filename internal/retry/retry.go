// Package retry provides retry logic with exponential backoff for transient
// delivery failures.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultConfig returns the delivery retry configuration: three retries
// starting at 100ms and doubling up to 5s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Validate checks the retry configuration.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < c.InitialBackoff {
		return errors.New("backoff must satisfy 0 <= initial <= max")
	}
	if c.BackoffFactor < 1 {
		return errors.New("backoff factor must be at least 1")
	}
	return nil
}

// Classified is implemented by errors that know whether they are transient.
type Classified interface {
	Retryable() bool
}

// IsRetryable reports whether err is transient. Errors implementing
// Classified decide for themselves; network timeouts are retryable; anything
// else is matched against known provider messages. Unknown errors are not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var classified Classified
	if errors.As(err, &classified) {
		return classified.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())

	nonRetryable := []string{
		"not verified",       // SES sandbox - recipient not verified
		"validation error",   // Invalid input
		"invalid",            // Invalid request
		"malformed",          // Bad request format
		"unsubscribed",       // Phone opted out (Twilio 21610)
		"not a valid phone",  // Twilio 21211
		"registration-token", // FCM unregistered token
	}
	for _, s := range nonRetryable {
		if strings.Contains(errStr, s) {
			return false
		}
	}

	retryable := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"rate limit",
		"throttl",
		"503",
		"502",
		"504",
		"429",
		"too many requests",
		"try again",
		"unavailable",
	}
	for _, s := range retryable {
		if strings.Contains(errStr, s) {
			return true
		}
	}

	return false
}

// RetryFunc is called before each retry with the 1-based retry number, the
// error that triggered it and the backoff about to be slept.
type RetryFunc func(retry int, err error, backoff time.Duration)

// WithRetry executes fn with retry logic and exponential backoff.
// It only retries on transient errors determined by IsRetryable.
func WithRetry(ctx context.Context, cfg Config, operation string, fn func() error) error {
	return Do(ctx, cfg, operation, fn, nil)
}

// Do is WithRetry with a hook invoked before every retry.
func Do(ctx context.Context, cfg Config, operation string, fn func() error, onRetry RetryFunc) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				slog.Info("Operation succeeded after retry",
					"operation", operation,
					"attempt", attempt+1,
				)
			}
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			slog.Debug("Error is not retryable, failing immediately",
				"operation", operation,
				"error", err,
			)
			return err
		}

		if attempt >= cfg.MaxRetries {
			slog.Warn("Max retries exceeded",
				"operation", operation,
				"attempts", attempt+1,
				"error", err,
			)
			return err
		}

		backoff := calculateBackoff(cfg, attempt)

		slog.Warn("Operation failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", cfg.MaxRetries+1,
			"backoff", backoff,
			"error", err,
		)
		if onRetry != nil {
			onRetry(attempt+1, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// calculateBackoff returns initial*factor^attempt capped at MaxBackoff, with ±25% jitter.
func calculateBackoff(cfg Config, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	return time.Duration(backoff)
}
