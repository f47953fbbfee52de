// Package sqlite journals engine events in an embedded SQLite database
// (pure Go, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS auction_events (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT    NOT NULL UNIQUE,
    kind       TEXT    NOT NULL,
    auction_id INTEGER NOT NULL DEFAULT 0,
    order_id   INTEGER NOT NULL DEFAULT 0,
    user_id    INTEGER NOT NULL DEFAULT 0,
    detail     TEXT    NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL -- unix milliseconds
);

CREATE INDEX IF NOT EXISTS idx_events_auction ON auction_events(auction_id, seq);
`

// EventStore implements domain.EventStore on SQLite.
type EventStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway journal.
func Open(path string) (*EventStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &EventStore{db: db}, nil
}

// Close closes the database.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// Append inserts events in order inside one transaction.
func (s *EventStore) Append(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO auction_events (id, kind, auction_id, order_id, user_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		detail, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("sqlite: marshal event detail: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, string(e.Kind), int64(e.AuctionID), int64(e.OrderID), int64(e.UserID),
			string(detail), e.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("sqlite: insert event %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// List returns events in append order.
func (s *EventStore) List(ctx context.Context, q domain.EventQuery) ([]domain.Event, error) {
	query := `SELECT id, kind, auction_id, order_id, user_id, detail, created_at FROM auction_events`
	var args []any
	if q.AuctionID != 0 {
		query += ` WHERE auction_id = ?`
		args = append(args, int64(q.AuctionID))
	}
	query += ` ORDER BY seq ASC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e                          domain.Event
			kind, detail               string
			auctionID, orderID, userID int64
			createdAt                  int64
		)
		if err := rows.Scan(&e.ID, &kind, &auctionID, &orderID, &userID, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		e.Kind = domain.NotificationKind(kind)
		e.AuctionID, e.OrderID, e.UserID = uint64(auctionID), uint64(orderID), uint64(userID)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal event detail: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list events rows: %w", err)
	}
	return events, nil
}

var _ domain.EventStore = (*EventStore)(nil)
