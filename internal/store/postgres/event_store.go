package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/batchauction/internal/domain"
)

// EventStore implements domain.EventStore on the auction_events table.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore backed by the given pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts events in order inside one transaction.
func (s *EventStore) Append(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	const query = `
		INSERT INTO auction_events (id, kind, auction_id, order_id, user_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	batch := &pgx.Batch{}
	for _, e := range events {
		detail, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("postgres: marshal event detail: %w", err)
		}
		batch.Queue(query, e.ID, string(e.Kind), int64(e.AuctionID), int64(e.OrderID), int64(e.UserID), detail, e.CreatedAt)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for range events {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: append event: %w", err)
			}
		}
		return br.Close()
	})
}

// List returns events in append order.
func (s *EventStore) List(ctx context.Context, q domain.EventQuery) ([]domain.Event, error) {
	query := `SELECT id, kind, auction_id, order_id, user_id, detail, created_at FROM auction_events WHERE 1=1`
	args := []any{}
	argIdx := 1

	if q.AuctionID != 0 {
		query += fmt.Sprintf(" AND auction_id = $%d", argIdx)
		args = append(args, int64(q.AuctionID))
		argIdx++
	}

	query += " ORDER BY seq ASC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, q.Limit)
		argIdx++
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, q.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e                          domain.Event
			kind                       string
			auctionID, orderID, userID int64
			detail                     []byte
		)
		if err := rows.Scan(&e.ID, &kind, &auctionID, &orderID, &userID, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		e.Kind = domain.NotificationKind(kind)
		e.AuctionID, e.OrderID, e.UserID = uint64(auctionID), uint64(orderID), uint64(userID)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal event detail: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}

var _ domain.EventStore = (*EventStore)(nil)
