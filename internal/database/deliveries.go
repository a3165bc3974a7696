package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
)

const deliveryColumns = `id, user_id, alert_event_id, alert_type, severity, title, channel, status, created_at,
		sent_at, error_code, error_message, provider_ref, retry_count, retryable, is_aggregated,
		aggregation_group_id, read_at, score, priority_band`

// CreateDelivery inserts a new delivery record.
func (db *DB) CreateDelivery(ctx context.Context, rec *delivery.Record) error {
	query := `
		INSERT INTO delivery_records (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := db.conn.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.AlertEventID,
		string(rec.AlertType),
		string(rec.Severity),
		rec.Title,
		string(rec.Channel),
		string(rec.Status),
		rec.CreatedAt,
		rec.SentAt,
		rec.ErrorCode,
		rec.ErrorMessage,
		rec.ProviderRef,
		rec.RetryCount,
		rec.Retryable,
		rec.IsAggregated,
		rec.AggregationGroupID,
		rec.ReadAt,
		rec.Score,
		rec.PriorityBand,
	)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return fmt.Errorf("delivery %s already exists", rec.ID)
		}
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	return nil
}

// UpdateDelivery saves the mutable fields of rec while the stored row is
// still pending. Terminal rows are never rewritten.
func (db *DB) UpdateDelivery(ctx context.Context, rec *delivery.Record) error {
	query := `
		UPDATE delivery_records
		SET status = $2,
		    sent_at = $3,
		    error_code = $4,
		    error_message = $5,
		    provider_ref = $6,
		    retry_count = $7,
		    retryable = $8,
		    is_aggregated = $9,
		    aggregation_group_id = $10
		WHERE id = $1 AND status = 'pending'
	`
	result, err := db.conn.ExecContext(ctx, query,
		rec.ID,
		string(rec.Status),
		rec.SentAt,
		rec.ErrorCode,
		rec.ErrorMessage,
		rec.ProviderRef,
		rec.RetryCount,
		rec.Retryable,
		rec.IsAggregated,
		rec.AggregationGroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM delivery_records WHERE id = $1)`
	if err := db.conn.QueryRowContext(ctx, checkQuery, rec.ID).Scan(&exists); err == nil && exists {
		return fmt.Errorf("delivery %s: %w", rec.ID, store.ErrNotPending)
	}
	return notFound("delivery", rec.ID)
}

// GetDelivery retrieves a delivery record by ID.
func (db *DB) GetDelivery(ctx context.Context, deliveryID string) (*delivery.Record, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_records WHERE id = $1`
	rec, err := scanDelivery(db.conn.QueryRowContext(ctx, query, deliveryID))
	if err == sql.ErrNoRows {
		return nil, notFound("delivery", deliveryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return rec, nil
}

// ListDeliveries retrieves records matching filter, newest first.
func (db *DB) ListDeliveries(ctx context.Context, filter store.DeliveryFilter) ([]*delivery.Record, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Channel != "" {
		add("channel = $%d", string(filter.Channel))
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("created_at < $%d", filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	query := `SELECT ` + deliveryColumns + ` FROM delivery_records`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	out := []*delivery.Record{}
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountSentSince counts the user's records sent at or after since.
func (db *DB) CountSentSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM delivery_records
		WHERE user_id = $1 AND status = 'sent' AND sent_at >= $2
	`
	var n int
	if err := db.conn.QueryRowContext(ctx, query, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sent deliveries: %w", err)
	}
	return n, nil
}

// FindAggregationCandidate returns the newest pending or sent record sharing
// rec's user, alert category, severity and channel created at or after since.
func (db *DB) FindAggregationCandidate(ctx context.Context, rec *delivery.Record, since time.Time) (*delivery.Record, error) {
	types := rec.Category().Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	query := `
		SELECT ` + deliveryColumns + `
		FROM delivery_records
		WHERE user_id = $1
		  AND alert_type = ANY($2)
		  AND severity = $3
		  AND channel = $4
		  AND status IN ('pending', 'sent')
		  AND created_at >= $5
		  AND id <> $6
		ORDER BY created_at DESC
		LIMIT 1
	`
	candidate, err := scanDelivery(db.conn.QueryRowContext(ctx, query,
		rec.UserID, pq.Array(names), string(rec.Severity), string(rec.Channel), since, rec.ID))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find aggregation candidate: %w", err)
	}
	return candidate, nil
}

// MarkAggregated adds a record to an aggregation group regardless of status.
func (db *DB) MarkAggregated(ctx context.Context, deliveryID, groupID string) error {
	query := `
		UPDATE delivery_records
		SET is_aggregated = TRUE,
		    aggregation_group_id = $2
		WHERE id = $1
	`
	result, err := db.conn.ExecContext(ctx, query, deliveryID, groupID)
	if err != nil {
		return fmt.Errorf("failed to mark delivery aggregated: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("delivery", deliveryID)
	}
	return nil
}

// MarkRead sets read_at once and returns the record.
func (db *DB) MarkRead(ctx context.Context, deliveryID string, at time.Time) (*delivery.Record, error) {
	query := `
		UPDATE delivery_records
		SET read_at = COALESCE(read_at, $2)
		WHERE id = $1
		RETURNING ` + deliveryColumns
	rec, err := scanDelivery(db.conn.QueryRowContext(ctx, query, deliveryID, at))
	if err == sql.ErrNoRows {
		return nil, notFound("delivery", deliveryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark delivery read: %w", err)
	}
	return rec, nil
}

func scanDelivery(row rowScanner) (*delivery.Record, error) {
	var (
		rec                                       delivery.Record
		alertType, severity, channel, status      string
		errorCode, errorMessage, providerRef, grp sql.NullString
		sentAt, readAt                            sql.NullTime
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.AlertEventID,
		&alertType,
		&severity,
		&rec.Title,
		&channel,
		&status,
		&rec.CreatedAt,
		&sentAt,
		&errorCode,
		&errorMessage,
		&providerRef,
		&rec.RetryCount,
		&rec.Retryable,
		&rec.IsAggregated,
		&grp,
		&readAt,
		&rec.Score,
		&rec.PriorityBand,
	); err != nil {
		return nil, err
	}
	rec.AlertType = alert.Type(alertType)
	rec.Severity = alert.Severity(severity)
	rec.Channel = delivery.Channel(channel)
	rec.Status = delivery.Status(status)
	rec.ErrorCode = errorCode.String
	rec.ErrorMessage = errorMessage.String
	rec.ProviderRef = providerRef.String
	rec.AggregationGroupID = grp.String
	if sentAt.Valid {
		t := sentAt.Time
		rec.SentAt = &t
	}
	if readAt.Valid {
		t := readAt.Time
		rec.ReadAt = &t
	}
	return &rec, nil
}
