// Package database implements store.Store on PostgreSQL.
//
// Tables: notification_preferences, notification_rules, alert_events,
// delivery_records, delivery_logs and recipients. Schema migrations are
// managed outside this repository.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Hibaxbelghith/argus-sub000/internal/store"
)

// PostgreSQL error codes handled explicitly.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// DB wraps a database connection and implements store.Store.
type DB struct {
	conn *sql.DB
}

var _ store.Store = (*DB)(nil)

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// NewWithConn wraps an existing connection.
func NewWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// pqCode returns the PostgreSQL error code of err, if any.
func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// notFound wraps store.ErrNotFound with the missing entity.
func notFound(entity, id string) error {
	return fmt.Errorf("%s not found: %s: %w", entity, id, store.ErrNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}
