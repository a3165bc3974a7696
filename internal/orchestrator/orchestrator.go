// Package orchestrator runs one alert event through the delivery pipeline:
// preference checks, rules, scoring, false-positive filtering, channel
// selection, aggregation and concurrent dispatch to channel adapters.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/metrics"
	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
	"github.com/Hibaxbelghith/argus-sub000/internal/ratelimit"
	"github.com/Hibaxbelghith/argus-sub000/internal/retry"
	"github.com/Hibaxbelghith/argus-sub000/internal/rules"
	"github.com/Hibaxbelghith/argus-sub000/internal/scoring"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
)

// SimilarAlertWindow is how far back similar alerts are counted for scoring.
const SimilarAlertWindow = 24 * time.Hour

// StopReason explains why an event produced no delivery records.
type StopReason string

const (
	StopCategoryDisabled StopReason = "category_disabled"
	StopQuietHours       StopReason = "quiet_hours"
	StopRateLimited      StopReason = "rate_limited"
	StopRuleSuppressed   StopReason = "rule_suppressed"
	StopDuplicate        StopReason = "duplicate"
)

// ErrInvalidEvent is returned for events that can never be processed.
var ErrInvalidEvent = errors.New("invalid alert event")

// Store is the persistence the pipeline needs.
type Store interface {
	preferences.Store
	store.Alerts
	ListRules(ctx context.Context, userID string) ([]*rules.Rule, error)
	CreateDelivery(ctx context.Context, rec *delivery.Record) error
	UpdateDelivery(ctx context.Context, rec *delivery.Record) error
	CountSentSince(ctx context.Context, userID string, since time.Time) (int, error)
	FindAggregationCandidate(ctx context.Context, rec *delivery.Record, since time.Time) (*delivery.Record, error)
	MarkAggregated(ctx context.Context, deliveryID, groupID string) error
	AppendLog(ctx context.Context, entry *delivery.LogEntry) error
	GetRecipient(ctx context.Context, userID string) (*delivery.Recipient, error)
}

// AuditPublisher receives every delivery log entry after it is stored.
type AuditPublisher interface {
	PublishLog(ctx context.Context, entry *delivery.LogEntry) error
}

// NoOpAudit discards log entries.
type NoOpAudit struct{}

func (NoOpAudit) PublishLog(context.Context, *delivery.LogEntry) error { return nil }

var _ AuditPublisher = NoOpAudit{}

// Outcome is the result of processing one event.
type Outcome struct {
	EventID string
	UserID  string
	// Stopped is set when the event produced no delivery records.
	Stopped StopReason
	Action  rules.Action
	// MatchedRuleID is the id of the rule that decided Action, if any.
	MatchedRuleID string
	// Event is the event as delivered, with any escalated severity.
	Event   *alert.Event
	Scored  *scoring.ScoredAlert
	Records []*delivery.Record
}

// Sent returns the records that reached status sent.
func (o *Outcome) Sent() []*delivery.Record {
	var out []*delivery.Record
	for _, rec := range o.Records {
		if rec.Status == delivery.StatusSent {
			out = append(out, rec)
		}
	}
	return out
}

// Orchestrator processes alert events. It is safe for concurrent use.
type Orchestrator struct {
	store    Store
	adapters *channel.Registry
	limiter  ratelimit.Limiter
	audit    AuditPublisher
	metrics  metrics.Recorder
	retry    retry.Config
	locks    *userLocks
	now      func() time.Time
	newID    func() string
}

// Option is a functional option for configuring an Orchestrator.
type Option func(*Orchestrator)

// WithLimiter replaces the store-backed rate limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithAudit sets the publisher of delivery log entries.
func WithAudit(a AuditPublisher) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.audit = a
		}
	}
}

// WithMetrics sets a custom metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithRetry sets the per-delivery retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(o *Orchestrator) {
		o.retry = cfg
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator. Rate limiting defaults to counting sent
// records in st; metrics and audit publishing default to no-ops.
func New(st Store, adapters *channel.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		adapters: adapters,
		limiter:  ratelimit.NewStoreLimiter(st),
		audit:    NoOpAudit{},
		metrics:  metrics.NewNoOp(),
		retry:    retry.DefaultConfig(),
		locks:    newUserLocks(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs event through the pipeline and returns what happened. Channel
// failures are recorded on the delivery records and never returned; an error
// means the event could not be evaluated and should be redelivered.
func (o *Orchestrator) Process(ctx context.Context, event *alert.Event) (*Outcome, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidEvent, event.ID, err)
	}

	start := o.now()
	o.metrics.RecordReceived()

	// One user's events are evaluated and dispatched serially so the rate
	// limit count and the sends it guards cannot interleave.
	unlock := o.locks.lock(event.UserID)
	defer unlock()

	outcome, pending, err := o.prepare(ctx, event)
	if err != nil {
		o.metrics.RecordError()
		return nil, err
	}
	if outcome.Stopped != "" {
		o.metrics.RecordStopped(string(outcome.Stopped))
		slog.Info("Alert event stopped",
			"alert_id", event.ID,
			"user_id", event.UserID,
			"reason", outcome.Stopped,
		)
		o.metrics.RecordProcessed(o.now().Sub(start))
		return outcome, nil
	}

	if len(pending) > 0 {
		o.dispatch(ctx, outcome.Event, pending)
	}

	o.metrics.RecordProcessed(o.now().Sub(start))
	slog.Info("Alert event processed",
		"alert_id", event.ID,
		"user_id", event.UserID,
		"action", outcome.Action,
		"score", outcome.Scored.Score,
		"priority_band", outcome.Scored.Band,
		"records", len(outcome.Records),
		"sent", len(outcome.Sent()),
	)
	return outcome, nil
}

// appendLog stores entry and hands it to the audit publisher. Failures are
// logged; the audit trail never blocks delivery.
func (o *Orchestrator) appendLog(ctx context.Context, entry *delivery.LogEntry) {
	if err := o.store.AppendLog(ctx, entry); err != nil {
		slog.Error("Failed to append delivery log",
			"delivery_id", entry.DeliveryID,
			"event", entry.Event,
			"error", err,
		)
		o.metrics.RecordError()
		return
	}
	if err := o.audit.PublishLog(ctx, entry); err != nil {
		slog.Warn("Failed to publish delivery log",
			"delivery_id", entry.DeliveryID,
			"event", entry.Event,
			"error", err,
		)
	}
}

// save persists a record update, logging failures.
func (o *Orchestrator) save(ctx context.Context, rec *delivery.Record) {
	if err := o.store.UpdateDelivery(ctx, rec); err != nil {
		slog.Error("Failed to update delivery record",
			"delivery_id", rec.ID,
			"status", rec.Status,
			"error", err,
		)
		o.metrics.RecordError()
	}
}
