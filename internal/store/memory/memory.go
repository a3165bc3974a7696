// Package memory is an in-process implementation of store.Store used for
// local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
	"github.com/Hibaxbelghith/argus-sub000/internal/rules"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
)

type alertRow struct {
	userID     string
	alertType  alert.Type
	occurredAt time.Time
}

// Store keeps every table in maps guarded by a single mutex. Values are
// copied on the way in and out.
type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	prefs      map[string]*preferences.Record
	rules      map[string]*rules.Rule
	alerts     map[string]alertRow
	deliveries map[string]*delivery.Record
	order      []string
	logs       map[string][]*delivery.LogEntry
	recipients map[string]*delivery.Recipient
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		now:        time.Now,
		prefs:      make(map[string]*preferences.Record),
		rules:      make(map[string]*rules.Rule),
		alerts:     make(map[string]alertRow),
		deliveries: make(map[string]*delivery.Record),
		logs:       make(map[string][]*delivery.LogEntry),
		recipients: make(map[string]*delivery.Recipient),
	}
}

// SetClock replaces the time source used for rule timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// GetOrCreatePreferences implements preferences.Store.
func (s *Store) GetOrCreatePreferences(_ context.Context, defaults *preferences.Record) (*preferences.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.prefs[defaults.UserID]; ok {
		return rec.Clone(), nil
	}
	s.prefs[defaults.UserID] = defaults.Clone()
	return defaults.Clone(), nil
}

// UpdatePreferences implements preferences.Store.
func (s *Store) UpdatePreferences(_ context.Context, rec *preferences.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.prefs[rec.UserID]; ok && rec.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	}
	s.prefs[rec.UserID] = rec.Clone()
	return nil
}

// DeletePreferences implements preferences.Store.
func (s *Store) DeletePreferences(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prefs[userID]; !ok {
		return fmt.Errorf("preferences for %s: %w", userID, store.ErrNotFound)
	}
	delete(s.prefs, userID)
	return nil
}

// CreateRule stores rule under a new id.
func (s *Store) CreateRule(_ context.Context, rule *rules.Rule) (*rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := rule.Clone()
	created.ID = uuid.NewString()
	now := s.now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	s.rules[created.ID] = created
	return created.Clone(), nil
}

// GetRule returns a rule by id.
func (s *Store) GetRule(_ context.Context, ruleID string) (*rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", ruleID, store.ErrNotFound)
	}
	return rule.Clone(), nil
}

// ListRules returns the user's rules, newest first.
func (s *Store) ListRules(_ context.Context, userID string) ([]*rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*rules.Rule
	for _, rule := range s.rules {
		if rule.UserID == userID {
			out = append(out, rule.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateRule replaces the mutable fields of an existing rule.
func (s *Store) UpdateRule(_ context.Context, rule *rules.Rule) (*rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.ID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, store.ErrNotFound)
	}
	updated := rule.Clone()
	updated.UserID = existing.UserID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now().UTC()
	s.rules[rule.ID] = updated
	return updated.Clone(), nil
}

// SetRuleActive enables or disables a rule.
func (s *Store) SetRuleActive(_ context.Context, ruleID string, active bool) (*rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", ruleID, store.ErrNotFound)
	}
	rule.IsActive = active
	rule.UpdatedAt = s.now().UTC()
	return rule.Clone(), nil
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(_ context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[ruleID]; !ok {
		return fmt.Errorf("rule %s: %w", ruleID, store.ErrNotFound)
	}
	delete(s.rules, ruleID)
	return nil
}

// RecordAlert inserts event unless its id is already known.
func (s *Store) RecordAlert(_ context.Context, event *alert.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[event.ID]; ok {
		return false, nil
	}
	s.alerts[event.ID] = alertRow{userID: event.UserID, alertType: event.Type, occurredAt: event.OccurredAt}
	return true, nil
}

// ReleaseAlert forgets eventID and drops its pending records.
func (s *Store) ReleaseAlert(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, eventID)
	kept := s.order[:0]
	for _, id := range s.order {
		rec := s.deliveries[id]
		if rec.AlertEventID == eventID && rec.Status == delivery.StatusPending {
			delete(s.deliveries, id)
			delete(s.logs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

// CountSimilarAlerts counts recorded alerts of the same user and type.
func (s *Store) CountSimilarAlerts(_ context.Context, userID string, alertType alert.Type, since time.Time, excludeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id, row := range s.alerts {
		if id == excludeID || row.userID != userID || row.alertType != alertType {
			continue
		}
		if !row.occurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// CreateDelivery stores a new record.
func (s *Store) CreateDelivery(_ context.Context, rec *delivery.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[rec.ID]; ok {
		return fmt.Errorf("delivery %s already exists", rec.ID)
	}
	s.deliveries[rec.ID] = rec.Clone()
	s.order = append(s.order, rec.ID)
	return nil
}

// UpdateDelivery saves rec while the stored copy is pending.
func (s *Store) UpdateDelivery(_ context.Context, rec *delivery.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.deliveries[rec.ID]
	if !ok {
		return fmt.Errorf("delivery %s: %w", rec.ID, store.ErrNotFound)
	}
	if existing.Status != delivery.StatusPending {
		return fmt.Errorf("delivery %s: %w", rec.ID, store.ErrNotPending)
	}
	s.deliveries[rec.ID] = rec.Clone()
	return nil
}

// GetDelivery returns a record by id.
func (s *Store) GetDelivery(_ context.Context, deliveryID string) (*delivery.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.deliveries[deliveryID]
	if !ok {
		return nil, fmt.Errorf("delivery %s: %w", deliveryID, store.ErrNotFound)
	}
	return rec.Clone(), nil
}

// ListDeliveries returns matching records, newest first.
func (s *Store) ListDeliveries(_ context.Context, filter store.DeliveryFilter) ([]*delivery.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*delivery.Record
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.deliveries[s.order[i]]
		if matches(rec, filter) {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	if filter.Offset >= len(matched) {
		return []*delivery.Record{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*delivery.Record, len(matched))
	for i, rec := range matched {
		out[i] = rec.Clone()
	}
	return out, nil
}

func matches(rec *delivery.Record, f store.DeliveryFilter) bool {
	switch {
	case f.UserID != "" && rec.UserID != f.UserID:
		return false
	case f.Status != "" && rec.Status != f.Status:
		return false
	case f.Channel != "" && rec.Channel != f.Channel:
		return false
	case !f.Since.IsZero() && rec.CreatedAt.Before(f.Since):
		return false
	case !f.Until.IsZero() && !rec.CreatedAt.Before(f.Until):
		return false
	}
	return true
}

// CountSentSince counts the user's records sent at or after since.
func (s *Store) CountSentSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.deliveries {
		if rec.UserID == userID && rec.Status == delivery.StatusSent && rec.SentAt != nil && !rec.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// FindAggregationCandidate returns the newest record rec can be grouped with.
func (s *Store) FindAggregationCandidate(_ context.Context, rec *delivery.Record, since time.Time) (*delivery.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *delivery.Record
	for _, other := range s.deliveries {
		if other.ID == rec.ID || other.UserID != rec.UserID || other.Channel != rec.Channel {
			continue
		}
		if other.Category() != rec.Category() || other.Severity != rec.Severity {
			continue
		}
		if other.Status != delivery.StatusPending && other.Status != delivery.StatusSent {
			continue
		}
		if other.CreatedAt.Before(since) {
			continue
		}
		if best == nil || other.CreatedAt.After(best.CreatedAt) {
			best = other
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best.Clone(), nil
}

// MarkAggregated flags a record as part of groupID.
func (s *Store) MarkAggregated(_ context.Context, deliveryID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.deliveries[deliveryID]
	if !ok {
		return fmt.Errorf("delivery %s: %w", deliveryID, store.ErrNotFound)
	}
	rec.IsAggregated = true
	rec.AggregationGroupID = groupID
	return nil
}

// MarkRead sets read_at once; later calls keep the first timestamp.
func (s *Store) MarkRead(_ context.Context, deliveryID string, at time.Time) (*delivery.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.deliveries[deliveryID]
	if !ok {
		return nil, fmt.Errorf("delivery %s: %w", deliveryID, store.ErrNotFound)
	}
	if rec.ReadAt == nil {
		readAt := at
		rec.ReadAt = &readAt
	}
	return rec.Clone(), nil
}

// AppendLog appends entry to its delivery's log.
func (s *Store) AppendLog(_ context.Context, entry *delivery.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.logs[entry.DeliveryID] = append(s.logs[entry.DeliveryID], &cp)
	return nil
}

// ListLogs returns a delivery's log in append order.
func (s *Store) ListLogs(_ context.Context, deliveryID string) ([]*delivery.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.logs[deliveryID]
	out := make([]*delivery.LogEntry, len(entries))
	for i, e := range entries {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// PutRecipient stores contact details for a user.
func (s *Store) PutRecipient(r *delivery.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.recipients[r.UserID] = &cp
}

// GetRecipient returns a user's contact details.
func (s *Store) GetRecipient(_ context.Context, userID string) (*delivery.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipients[userID]
	if !ok {
		return nil, fmt.Errorf("recipient %s: %w", userID, store.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}
