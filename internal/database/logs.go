package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// AppendLog inserts one delivery log entry.
func (db *DB) AppendLog(ctx context.Context, entry *delivery.LogEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal log details: %w", err)
	}
	query := `
		INSERT INTO delivery_logs (id, delivery_id, user_id, event, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := db.conn.ExecContext(ctx, query,
		entry.ID, entry.DeliveryID, entry.UserID, entry.Event, details, entry.CreatedAt); err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return notFound("delivery", entry.DeliveryID)
		}
		return fmt.Errorf("failed to append delivery log: %w", err)
	}
	return nil
}

// ListLogs returns a delivery's log entries in append order.
func (db *DB) ListLogs(ctx context.Context, deliveryID string) ([]*delivery.LogEntry, error) {
	query := `
		SELECT id, delivery_id, user_id, event, details, created_at
		FROM delivery_logs
		WHERE delivery_id = $1
		ORDER BY created_at, id
	`
	rows, err := db.conn.QueryContext(ctx, query, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	defer rows.Close()

	out := []*delivery.LogEntry{}
	for rows.Next() {
		var (
			entry   delivery.LogEntry
			details []byte
		)
		if err := rows.Scan(&entry.ID, &entry.DeliveryID, &entry.UserID, &entry.Event, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}
		entry.Details = unmarshalDetails(details, "log_id", entry.ID)
		out = append(out, &entry)
	}
	return out, rows.Err()
}

// unmarshalDetails deserializes log details JSON.
func unmarshalDetails(data []byte, warnAttrs ...any) map[string]string {
	if len(data) == 0 {
		return make(map[string]string)
	}
	var details map[string]string
	if err := json.Unmarshal(data, &details); err != nil {
		slog.Warn("Failed to unmarshal details JSON", append([]any{"error", err}, warnAttrs...)...)
		return make(map[string]string)
	}
	if details == nil {
		return make(map[string]string)
	}
	return details
}
