package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

// RecordAlert inserts the event unless its id was already recorded.
// Returns true when the row was inserted.
func (db *DB) RecordAlert(ctx context.Context, event *alert.Event) (bool, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("failed to marshal alert event: %w", err)
	}
	query := `
		INSERT INTO alert_events (id, user_id, alert_type, severity, occurred_at, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	result, err := db.conn.ExecContext(ctx, query,
		event.ID, event.UserID, string(event.Type), string(event.Severity), event.OccurredAt, payload)
	if err != nil {
		return false, fmt.Errorf("failed to record alert event: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// releaseStatements undo RecordAlert together with the pending records
// created for the event.
var releaseStatements = []string{
	`DELETE FROM delivery_logs
		WHERE delivery_id IN (SELECT id FROM delivery_records WHERE alert_event_id = $1 AND status = 'pending')`,
	`DELETE FROM delivery_records WHERE alert_event_id = $1 AND status = 'pending'`,
	`DELETE FROM alert_events WHERE id = $1`,
}

// ReleaseAlert removes the alert row and its pending delivery records in one
// transaction.
func (db *DB) ReleaseAlert(ctx context.Context, eventID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, query := range releaseStatements {
		if _, err := tx.ExecContext(ctx, query, eventID); err != nil {
			return fmt.Errorf("failed to release alert event %s: %w", eventID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alert release: %w", err)
	}
	return nil
}

// CountSimilarAlerts counts the user's alerts of alertType that occurred at or
// after since, excluding excludeID.
func (db *DB) CountSimilarAlerts(ctx context.Context, userID string, alertType alert.Type, since time.Time, excludeID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM alert_events
		WHERE user_id = $1 AND alert_type = $2 AND occurred_at >= $3 AND id <> $4
	`
	var n int
	if err := db.conn.QueryRowContext(ctx, query, userID, string(alertType), since, excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count similar alerts: %w", err)
	}
	return n, nil
}
