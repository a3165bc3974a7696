// Package store defines the persistence contracts shared by the Postgres and
// in-memory backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
	"github.com/Hibaxbelghith/argus-sub000/internal/rules"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotPending is returned when a delivery update targets a record that has
// already reached a terminal status.
var ErrNotPending = errors.New("delivery is not pending")

// DefaultListLimit is used when a DeliveryFilter has no limit.
const DefaultListLimit = 50

// DeliveryFilter narrows ListDeliveries. Zero fields do not filter.
type DeliveryFilter struct {
	UserID  string
	Status  delivery.Status
	Channel delivery.Channel
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}

// Rules persists notification rules.
type Rules interface {
	CreateRule(ctx context.Context, rule *rules.Rule) (*rules.Rule, error)
	GetRule(ctx context.Context, ruleID string) (*rules.Rule, error)
	ListRules(ctx context.Context, userID string) ([]*rules.Rule, error)
	UpdateRule(ctx context.Context, rule *rules.Rule) (*rules.Rule, error)
	SetRuleActive(ctx context.Context, ruleID string, active bool) (*rules.Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error
}

// Alerts records processed alert events.
type Alerts interface {
	// RecordAlert stores event unless its id was seen before and reports
	// whether it was inserted.
	RecordAlert(ctx context.Context, event *alert.Event) (bool, error)
	// ReleaseAlert forgets eventID and deletes its pending delivery records
	// with their logs, so a redelivery of the event is processed again.
	ReleaseAlert(ctx context.Context, eventID string) error
	// CountSimilarAlerts counts the user's alerts of the given type that
	// occurred at or after since, excluding excludeID.
	CountSimilarAlerts(ctx context.Context, userID string, alertType alert.Type, since time.Time, excludeID string) (int, error)
}

// Deliveries persists delivery records.
type Deliveries interface {
	CreateDelivery(ctx context.Context, rec *delivery.Record) error
	// UpdateDelivery saves rec. It returns ErrNotPending when the stored
	// record already reached a terminal status.
	UpdateDelivery(ctx context.Context, rec *delivery.Record) error
	GetDelivery(ctx context.Context, deliveryID string) (*delivery.Record, error)
	ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]*delivery.Record, error)
	CountSentSince(ctx context.Context, userID string, since time.Time) (int, error)
	// FindAggregationCandidate returns the newest pending or sent record
	// matching rec's user, category, severity and channel created at or after
	// since, or ErrNotFound.
	FindAggregationCandidate(ctx context.Context, rec *delivery.Record, since time.Time) (*delivery.Record, error)
	// MarkAggregated flags a record as a member of groupID regardless of status.
	MarkAggregated(ctx context.Context, deliveryID, groupID string) error
	MarkRead(ctx context.Context, deliveryID string, at time.Time) (*delivery.Record, error)
}

// Logs persists the append-only delivery log.
type Logs interface {
	AppendLog(ctx context.Context, entry *delivery.LogEntry) error
	ListLogs(ctx context.Context, deliveryID string) ([]*delivery.LogEntry, error)
}

// Recipients reads user contact details.
type Recipients interface {
	GetRecipient(ctx context.Context, userID string) (*delivery.Recipient, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	preferences.Store
	Rules
	Alerts
	Deliveries
	Logs
	Recipients
	Close() error
}
