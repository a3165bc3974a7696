package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
)

const preferenceColumns = `user_id, enabled_channels, min_severity, quiet_hours_enabled, quiet_hours_start,
		quiet_hours_end, aggregation_enabled, aggregation_window_minutes, max_notifications_per_hour,
		categories, created_at, updated_at`

// GetOrCreatePreferences inserts defaults unless the user already has a
// record, then returns the stored record.
func (db *DB) GetOrCreatePreferences(ctx context.Context, defaults *preferences.Record) (*preferences.Record, error) {
	args, err := preferenceArgs(defaults)
	if err != nil {
		return nil, err
	}
	insert := `
		INSERT INTO notification_preferences (` + preferenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := db.conn.ExecContext(ctx, insert, args...); err != nil {
		return nil, fmt.Errorf("failed to create preferences: %w", err)
	}

	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE user_id = $1`
	rec, err := scanPreferences(db.conn.QueryRowContext(ctx, query, defaults.UserID))
	if err == sql.ErrNoRows {
		return nil, notFound("preferences", defaults.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return rec, nil
}

// UpdatePreferences upserts the user's record.
func (db *DB) UpdatePreferences(ctx context.Context, rec *preferences.Record) error {
	args, err := preferenceArgs(rec)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO notification_preferences (` + preferenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled_channels = EXCLUDED.enabled_channels,
			min_severity = EXCLUDED.min_severity,
			quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			aggregation_enabled = EXCLUDED.aggregation_enabled,
			aggregation_window_minutes = EXCLUDED.aggregation_window_minutes,
			max_notifications_per_hour = EXCLUDED.max_notifications_per_hour,
			categories = EXCLUDED.categories,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return nil
}

// DeletePreferences removes the user's record.
func (db *DB) DeletePreferences(ctx context.Context, userID string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM notification_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("preferences", userID)
	}
	return nil
}

func preferenceArgs(rec *preferences.Record) ([]any, error) {
	channels := make([]string, len(rec.EnabledChannels))
	for i, ch := range rec.EnabledChannels {
		channels[i] = string(ch)
	}
	floors, err := json.Marshal(rec.MinSeverity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal min_severity: %w", err)
	}
	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal categories: %w", err)
	}
	return []any{
		rec.UserID,
		pq.Array(channels),
		floors,
		rec.QuietHours.Enabled,
		int(rec.QuietHours.Start),
		int(rec.QuietHours.End),
		rec.Aggregation.Enabled,
		rec.Aggregation.WindowMinutes,
		rec.MaxPerHour,
		categories,
		rec.CreatedAt,
		rec.UpdatedAt,
	}, nil
}

func scanPreferences(row rowScanner) (*preferences.Record, error) {
	var (
		rec                  preferences.Record
		channels             []string
		floors, categories   []byte
		quietStart, quietEnd int
	)
	if err := row.Scan(
		&rec.UserID,
		pq.Array(&channels),
		&floors,
		&rec.QuietHours.Enabled,
		&quietStart,
		&quietEnd,
		&rec.Aggregation.Enabled,
		&rec.Aggregation.WindowMinutes,
		&rec.MaxPerHour,
		&categories,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.EnabledChannels = make([]delivery.Channel, len(channels))
	for i, ch := range channels {
		rec.EnabledChannels[i] = delivery.Channel(ch)
	}
	rec.QuietHours.Start = preferences.TimeOfDay(quietStart)
	rec.QuietHours.End = preferences.TimeOfDay(quietEnd)

	rec.MinSeverity = make(map[delivery.Channel]alert.Severity)
	if len(floors) > 0 {
		if err := json.Unmarshal(floors, &rec.MinSeverity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal min_severity: %w", err)
		}
	}
	rec.Categories = make(map[alert.Category]bool)
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &rec.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
	}
	return &rec, nil
}
