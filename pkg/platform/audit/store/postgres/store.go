// Package postgres persists audit events in the audit_events table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	audit "tfc/pkg/platform/audit"
)

// Schema creates the audit_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          TEXT PRIMARY KEY,
	category    TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	action      TEXT NOT NULL,
	user_id     TEXT,
	telegram_id BIGINT,
	role        TEXT,
	flow        TEXT,
	reason      TEXT,
	ip          TEXT,
	device      TEXT,
	request_id  TEXT
);
CREATE INDEX IF NOT EXISTS audit_events_timestamp_idx ON audit_events (timestamp DESC)`

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit_events: %w", err)
	}
	return nil
}

// Append inserts an event. Re-inserting the same id is a no-op.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action, user_id, telegram_id,
			role, flow, reason, ip, device, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Action.Category()),
		event.Timestamp,
		string(event.Action),
		nullString(event.UserID),
		nullInt64(event.TelegramID),
		nullString(event.Role),
		nullString(event.Flow),
		nullString(event.Reason),
		nullString(event.IP),
		nullString(event.Device),
		nullString(event.RequestID),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events first.
func (s *Store) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, category, timestamp, action, user_id, telegram_id,
			role, flow, reason, ip, device, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                                             audit.Event
			category, action                              string
			userID, role, flow, reason, ip, device, reqID sql.NullString
			telegramID                                    sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &category, &e.Timestamp, &action, &userID, &telegramID,
			&role, &flow, &reason, &ip, &device, &reqID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Action = audit.AuditEvent(action)
		e.UserID = userID.String
		e.TelegramID = telegramID.Int64
		e.Role = role.String
		e.Flow = flow.String
		e.Reason = reason.String
		e.IP = ip.String
		e.Device = device.String
		e.RequestID = reqID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
