package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// GetRecipient reads a user's contact details.
func (db *DB) GetRecipient(ctx context.Context, userID string) (*delivery.Recipient, error) {
	query := `
		SELECT user_id, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(push_token, ''), COALESCE(webhook_url, '')
		FROM recipients
		WHERE user_id = $1
	`
	var r delivery.Recipient
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(&r.UserID, &r.Email, &r.Phone, &r.PushToken, &r.WebhookURL)
	if err == sql.ErrNoRows {
		return nil, notFound("recipient", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &r, nil
}
