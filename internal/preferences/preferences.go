// Package preferences holds the per-user delivery configuration consumed by
// the delivery pipeline.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// Defaults applied to a user's first preference record.
const (
	DefaultAggregationWindowMinutes = 15
	DefaultQuietStart               = TimeOfDay(22 * 60)
	DefaultQuietEnd                 = TimeOfDay(6 * 60)
	MaxAggregationWindowMinutes     = 24 * 60
)

// QuietHours is a daily window in which only critical alerts are delivered.
// A window whose start is after its end spans midnight.
type QuietHours struct {
	Enabled bool      `json:"enabled"`
	Start   TimeOfDay `json:"start"`
	End     TimeOfDay `json:"end"`
}

// Active reports whether t falls inside the quiet window.
func (q QuietHours) Active(t time.Time) bool {
	if !q.Enabled || q.Start == q.End {
		return false
	}
	now := TimeOfDayOf(t)
	if q.Start < q.End {
		return now >= q.Start && now < q.End
	}
	return now >= q.Start || now < q.End
}

// Aggregation controls merging of similar alerts inside a time window.
type Aggregation struct {
	Enabled       bool `json:"enabled"`
	WindowMinutes int  `json:"window_minutes"`
}

// Window returns the aggregation window as a duration.
func (a Aggregation) Window() time.Duration {
	return time.Duration(a.WindowMinutes) * time.Minute
}

// Record is the delivery configuration of one user.
type Record struct {
	UserID          string                              `json:"user_id"`
	EnabledChannels []delivery.Channel                  `json:"enabled_channels"`
	MinSeverity     map[delivery.Channel]alert.Severity `json:"min_severity"`
	QuietHours      QuietHours                          `json:"quiet_hours"`
	Aggregation     Aggregation                         `json:"aggregation"`
	MaxPerHour      int                                 `json:"max_notifications_per_hour"`
	Categories      map[alert.Category]bool             `json:"categories"`
	CreatedAt       time.Time                           `json:"created_at"`
	UpdatedAt       time.Time                           `json:"updated_at"`
}

// Default returns the record a user starts with: web only, every floor at
// low, quiet hours and aggregation disabled, no rate limit and every category
// opted in.
func Default(userID string, now time.Time) *Record {
	floors := make(map[delivery.Channel]alert.Severity, len(delivery.Channels))
	for _, ch := range delivery.Channels {
		floors[ch] = alert.SeverityLow
	}
	return &Record{
		UserID:          userID,
		EnabledChannels: []delivery.Channel{delivery.ChannelWeb},
		MinSeverity:     floors,
		QuietHours: QuietHours{
			Start: DefaultQuietStart,
			End:   DefaultQuietEnd,
		},
		Aggregation: Aggregation{WindowMinutes: DefaultAggregationWindowMinutes},
		Categories: map[alert.Category]bool{
			alert.CategorySuspiciousObjects: true,
			alert.CategoryAnomalies:         true,
			alert.CategoryHighFrequency:     true,
			alert.CategoryUnusualTime:       true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := *r
	out.EnabledChannels = slices.Clone(r.EnabledChannels)
	out.MinSeverity = maps.Clone(r.MinSeverity)
	out.Categories = maps.Clone(r.Categories)
	return &out
}

// ChannelEnabled reports whether ch is in the enabled channel set.
func (r *Record) ChannelEnabled(ch delivery.Channel) bool {
	for _, enabled := range r.EnabledChannels {
		if enabled == ch {
			return true
		}
	}
	return false
}

// Floor returns the minimum severity configured for ch, low when unset.
func (r *Record) Floor(ch delivery.Channel) alert.Severity {
	if sev, ok := r.MinSeverity[ch]; ok && sev.Valid() {
		return sev
	}
	return alert.SeverityLow
}

// CategoryEnabled reports whether the user opted into cat. Categories missing
// from the record are treated as opted in.
func (r *Record) CategoryEnabled(cat alert.Category) bool {
	enabled, ok := r.Categories[cat]
	return !ok || enabled
}

// EligibleChannels returns the enabled channels whose floor sev meets, in
// enabled order.
func (r *Record) EligibleChannels(sev alert.Severity) []delivery.Channel {
	var out []delivery.Channel
	for _, ch := range r.EnabledChannels {
		if sev.AtLeast(r.Floor(ch)) {
			out = append(out, ch)
		}
	}
	return out
}

// Validate checks a record submitted by the user.
func (r *Record) Validate() error {
	var errs []error
	if r.UserID == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	seen := make(map[delivery.Channel]bool)
	for _, ch := range r.EnabledChannels {
		if !ch.Valid() {
			errs = append(errs, fmt.Errorf("unknown channel %q", ch))
		}
		if seen[ch] {
			errs = append(errs, fmt.Errorf("duplicate channel %q", ch))
		}
		seen[ch] = true
	}
	for ch, sev := range r.MinSeverity {
		if !ch.Valid() {
			errs = append(errs, fmt.Errorf("unknown channel %q in min_severity", ch))
		}
		if !sev.Valid() {
			errs = append(errs, fmt.Errorf("unknown severity %q for channel %q", sev, ch))
		}
	}
	if !r.QuietHours.Start.Valid() || !r.QuietHours.End.Valid() {
		errs = append(errs, errors.New("quiet hours must be within 00:00-23:59"))
	}
	if r.Aggregation.Enabled && (r.Aggregation.WindowMinutes < 1 || r.Aggregation.WindowMinutes > MaxAggregationWindowMinutes) {
		errs = append(errs, fmt.Errorf("aggregation window must be between 1 and %d minutes", MaxAggregationWindowMinutes))
	}
	if r.MaxPerHour < 0 {
		errs = append(errs, errors.New("max_notifications_per_hour must not be negative"))
	}
	for cat := range r.Categories {
		switch cat {
		case alert.CategorySuspiciousObjects, alert.CategoryAnomalies, alert.CategoryHighFrequency, alert.CategoryUnusualTime:
		default:
			errs = append(errs, fmt.Errorf("unknown category %q", cat))
		}
	}
	return errors.Join(errs...)
}

// Store persists preference records.
type Store interface {
	// GetOrCreatePreferences returns the user's record, inserting defaults
	// atomically when none exists.
	GetOrCreatePreferences(ctx context.Context, defaults *Record) (*Record, error)
	// UpdatePreferences replaces the user's record.
	UpdatePreferences(ctx context.Context, rec *Record) error
	// DeletePreferences removes the user's record on account deletion.
	DeletePreferences(ctx context.Context, userID string) error
}

// GetOrCreate resolves the record for userID, creating it with defaults on first use.
func GetOrCreate(ctx context.Context, store Store, userID string, now time.Time) (*Record, error) {
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	rec, err := store.GetOrCreatePreferences(ctx, Default(userID, now))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preferences for %s: %w", userID, err)
	}
	return rec, nil
}
