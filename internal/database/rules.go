package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Hibaxbelghith/argus-sub000/internal/rules"
)

const ruleColumns = `id, user_id, name, condition_type, condition_value, action, priority, is_active, created_at, updated_at`

// CreateRule creates a new rule in the database.
// Returns the created rule with its generated id and timestamps.
func (db *DB) CreateRule(ctx context.Context, rule *rules.Rule) (*rules.Rule, error) {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal condition: %w", err)
	}
	query := `
		INSERT INTO notification_rules (user_id, name, condition_type, condition_value, action, priority, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + ruleColumns
	created, err := scanRule(db.conn.QueryRowContext(ctx, query,
		rule.UserID, rule.Name, string(rule.ConditionType), condition, string(rule.Action), rule.Priority, rule.IsActive))
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return nil, fmt.Errorf("rule %q already exists for user %s", rule.Name, rule.UserID)
		}
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return created, nil
}

// GetRule retrieves a rule by ID.
func (db *DB) GetRule(ctx context.Context, ruleID string) (*rules.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE id = $1`
	rule, err := scanRule(db.conn.QueryRowContext(ctx, query, ruleID))
	if err == sql.ErrNoRows {
		return nil, notFound("rule", ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ListRules retrieves the user's rules, newest first.
func (db *DB) ListRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM notification_rules
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*rules.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// UpdateRule replaces the mutable fields of a rule.
func (db *DB) UpdateRule(ctx context.Context, rule *rules.Rule) (*rules.Rule, error) {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal condition: %w", err)
	}
	query := `
		UPDATE notification_rules
		SET name = $2,
		    condition_type = $3,
		    condition_value = $4,
		    action = $5,
		    priority = $6,
		    is_active = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + ruleColumns
	updated, err := scanRule(db.conn.QueryRowContext(ctx, query,
		rule.ID, rule.Name, string(rule.ConditionType), condition, string(rule.Action), rule.Priority, rule.IsActive))
	if err == sql.ErrNoRows {
		return nil, notFound("rule", rule.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return updated, nil
}

// SetRuleActive enables or disables a rule.
func (db *DB) SetRuleActive(ctx context.Context, ruleID string, active bool) (*rules.Rule, error) {
	query := `
		UPDATE notification_rules
		SET is_active = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + ruleColumns
	rule, err := scanRule(db.conn.QueryRowContext(ctx, query, ruleID, active))
	if err == sql.ErrNoRows {
		return nil, notFound("rule", ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle rule: %w", err)
	}
	return rule, nil
}

// DeleteRule deletes a rule by ID.
func (db *DB) DeleteRule(ctx context.Context, ruleID string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM notification_rules WHERE id = $1`, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("rule", ruleID)
	}
	return nil
}

func scanRule(row rowScanner) (*rules.Rule, error) {
	var (
		rule                  rules.Rule
		conditionType, action string
		condition             []byte
	)
	if err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Name,
		&conditionType,
		&condition,
		&action,
		&rule.Priority,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rule.ConditionType = rules.ConditionType(conditionType)
	rule.Action = rules.Action(action)
	if len(condition) > 0 {
		if err := json.Unmarshal(condition, &rule.Condition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal condition_value: %w", err)
		}
	}
	return &rule, nil
}
