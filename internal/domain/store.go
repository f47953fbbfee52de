package domain

import (
	"context"
	"time"
)

// Event is a journaled notification.
type Event struct {
	ID        string
	Kind      NotificationKind
	AuctionID uint64
	OrderID   uint64
	UserID    uint64
	Detail    map[string]any
	CreatedAt time.Time
}

// EventQuery filters journal reads. AuctionID 0 matches every auction.
type EventQuery struct {
	AuctionID uint64
	ListOpts
}

// EventStore persists an append-only journal of engine notifications.
type EventStore interface {
	Append(ctx context.Context, events []Event) error
	List(ctx context.Context, q EventQuery) ([]Event, error)
}
