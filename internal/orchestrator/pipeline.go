package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/fpfilter"
	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
	"github.com/Hibaxbelghith/argus-sub000/internal/rules"
	"github.com/Hibaxbelghith/argus-sub000/internal/scoring"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
)

// prepare runs every step up to dispatch. It returns the outcome and the
// records that still need to be delivered.
func (o *Orchestrator) prepare(ctx context.Context, event *alert.Event) (*Outcome, []*delivery.Record, error) {
	outcome := &Outcome{EventID: event.ID, UserID: event.UserID, Event: event}
	now := o.now().UTC()

	inserted, err := o.store.RecordAlert(ctx, event)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record alert event: %w", err)
	}
	if !inserted {
		outcome.Stopped = StopDuplicate
		return outcome, nil, nil
	}

	pending, err := o.evaluate(ctx, event, outcome, now)
	if err != nil {
		o.release(ctx, event)
		return nil, nil, err
	}
	return outcome, pending, nil
}

// release undoes RecordAlert after a failed evaluation so the event is not
// treated as a duplicate when it is redelivered.
func (o *Orchestrator) release(ctx context.Context, event *alert.Event) {
	if err := o.store.ReleaseAlert(context.WithoutCancel(ctx), event.ID); err != nil {
		slog.Error("Failed to release alert event after error",
			"alert_id", event.ID,
			"user_id", event.UserID,
			"error", err,
		)
	}
}

// evaluate applies preferences, rate limits, rules and scoring to a newly
// recorded event and creates its delivery records.
func (o *Orchestrator) evaluate(ctx context.Context, event *alert.Event, outcome *Outcome, now time.Time) ([]*delivery.Record, error) {
	prefs, err := preferences.GetOrCreate(ctx, o.store, event.UserID, now)
	if err != nil {
		return nil, err
	}

	if !prefs.CategoryEnabled(event.Category()) {
		outcome.Stopped = StopCategoryDisabled
		return nil, nil
	}

	if prefs.QuietHours.Active(event.OccurredAt) && event.Severity != alert.SeverityCritical {
		outcome.Stopped = StopQuietHours
		return nil, nil
	}

	exceeded, err := o.limiter.Exceeded(ctx, event.UserID, prefs.MaxPerHour, now)
	if err != nil {
		return nil, err
	}
	if exceeded {
		outcome.Stopped = StopRateLimited
		return nil, nil
	}

	stored, err := o.store.ListRules(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	userRules := make([]rules.Rule, 0, len(stored))
	for _, r := range stored {
		userRules = append(userRules, *r)
	}
	action, matched := rules.EvaluateWithMatch(userRules, event)
	outcome.Action = action
	if matched != nil {
		outcome.MatchedRuleID = matched.ID
		slog.Debug("Rule matched",
			"alert_id", event.ID,
			"rule_id", matched.ID,
			"rule_name", matched.Name,
			"action", action,
		)
	}
	switch action {
	case rules.ActionSuppress:
		outcome.Stopped = StopRuleSuppressed
		return nil, nil
	case rules.ActionEscalate:
		escalated := *event
		escalated.Severity = event.Severity.Escalate()
		outcome.Event = &escalated
	}
	effective := outcome.Event

	similar, err := o.store.CountSimilarAlerts(ctx, event.UserID, event.Type, event.OccurredAt.Add(-SimilarAlertWindow), event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count similar alerts: %w", err)
	}
	scored := scoring.Score(effective, similar, scoring.EngagementFromPreferences(prefs, effective))
	fp := fpfilter.Classify(effective)
	scored.IsFalsePositive = fp.IsFalsePositive
	scored.FalsePositiveConfidence = fp.Confidence
	scored.FalsePositiveReasons = fp.Reasons
	outcome.Scored = scored

	for _, ch := range prefs.EligibleChannels(effective.Severity) {
		rec := &delivery.Record{
			ID:           o.newID(),
			UserID:       event.UserID,
			AlertEventID: event.ID,
			AlertType:    event.Type,
			Severity:     effective.Severity,
			Title:        effective.Title,
			Channel:      ch,
			Status:       delivery.StatusPending,
			CreatedAt:    now,
			Score:        scored.Score,
			PriorityBand: string(scored.Band),
		}
		if err := o.store.CreateDelivery(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to create delivery record: %w", err)
		}
		outcome.Records = append(outcome.Records, rec)
	}
	for _, rec := range outcome.Records {
		o.appendLog(ctx, delivery.NewLogEntry(rec, delivery.EventCreated, map[string]string{
			"channel":       string(rec.Channel),
			"score":         strconv.Itoa(scored.Score),
			"priority_band": string(scored.Band),
			"action":        string(action),
		}, now))
	}

	pending := outcome.Records
	if prefs.Aggregation.Enabled {
		pending = o.aggregate(ctx, pending, prefs.Aggregation, now)
	}

	if scored.IsFalsePositive {
		for _, rec := range pending {
			o.suppress(ctx, rec, delivery.CodeFalsePositive)
		}
		slog.Info("Alert classified as false positive",
			"alert_id", event.ID,
			"user_id", event.UserID,
			"confidence", fp.Confidence,
			"reasons", fp.Reasons,
		)
		pending = nil
	}

	return pending, nil
}

// aggregate folds records into recent matching records and returns the ones
// that still need delivery.
func (o *Orchestrator) aggregate(ctx context.Context, recs []*delivery.Record, agg preferences.Aggregation, now time.Time) []*delivery.Record {
	var remaining []*delivery.Record
	for _, rec := range recs {
		candidate, err := o.store.FindAggregationCandidate(ctx, rec, now.Add(-agg.Window()))
		if errors.Is(err, store.ErrNotFound) {
			remaining = append(remaining, rec)
			continue
		}
		if err != nil {
			slog.Warn("Failed to look up aggregation candidate, delivering individually",
				"delivery_id", rec.ID,
				"error", err,
			)
			remaining = append(remaining, rec)
			continue
		}

		groupID := candidate.AggregationGroupID
		if groupID == "" {
			groupID = o.newID()
		}
		if !candidate.IsAggregated || candidate.AggregationGroupID != groupID {
			if err := o.store.MarkAggregated(ctx, candidate.ID, groupID); err != nil {
				slog.Warn("Failed to mark aggregation candidate, delivering individually",
					"delivery_id", rec.ID,
					"candidate_id", candidate.ID,
					"error", err,
				)
				remaining = append(remaining, rec)
				continue
			}
		}

		rec.IsAggregated = true
		rec.AggregationGroupID = groupID
		o.appendLog(ctx, delivery.NewLogEntry(rec, delivery.EventAggregated, map[string]string{
			"aggregation_group_id": groupID,
			"aggregated_with":      candidate.ID,
		}, now))
		o.suppress(ctx, rec, delivery.CodeAggregated)
	}
	return remaining
}

// suppress moves a pending record to suppressed with reason.
func (o *Orchestrator) suppress(ctx context.Context, rec *delivery.Record, reason string) {
	now := o.now().UTC()
	if err := rec.MarkSuppressed(reason, now); err != nil {
		slog.Error("Failed to suppress delivery record", "delivery_id", rec.ID, "error", err)
		return
	}
	o.save(ctx, rec)
	o.appendLog(ctx, delivery.TerminalEntry(rec, now))
	o.metrics.RecordSuppressed(reason)
}
