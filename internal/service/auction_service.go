// Package service sits between the transports and the auction engine. It
// turns engine notifications into journaled events, fans them out over the
// signal bus and renders the JSON views the API and CLI consume.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/batchauction/internal/auction"
	"github.com/alanyoungcy/batchauction/internal/domain"
)

// EventChannelPrefix prefixes every per-auction pub/sub channel.
const EventChannelPrefix = "auction:events:"

// EventChannel returns the pub/sub channel of one auction's events.
func EventChannel(auctionID uint64) string {
	return fmt.Sprintf("%s%d", EventChannelPrefix, auctionID)
}

// EventNotifier delivers operator alerts.
type EventNotifier interface {
	Notify(ctx context.Context, ev domain.Event) error
}

// AuctionService wraps the engine with event fan-out and view rendering.
// The journal, bus and notifier are optional.
type AuctionService struct {
	engine   *auction.Engine
	journal  domain.EventStore
	bus      domain.SignalBus
	notifier EventNotifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewAuctionService creates an AuctionService. Any of journal, bus and
// notifier may be nil.
func NewAuctionService(
	engine *auction.Engine,
	journal domain.EventStore,
	bus domain.SignalBus,
	notifier EventNotifier,
	logger *slog.Logger,
) *AuctionService {
	return &AuctionService{
		engine:   engine,
		journal:  journal,
		bus:      bus,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "auction_service")),
	}
}

// Engine exposes the wrapped engine.
func (s *AuctionService) Engine() *auction.Engine { return s.engine }

// InitiateAuction creates an auction on behalf of caller.
func (s *AuctionService) InitiateAuction(ctx context.Context, caller common.Address, p domain.AuctionParams) (AuctionView, error) {
	id, notes, err := s.engine.InitiateAuction(ctx, caller, p)
	if err != nil {
		return AuctionView{}, fmt.Errorf("auction_service: initiate: %w", err)
	}
	s.publish(ctx, notes)
	s.logger.InfoContext(ctx, "auction_service: auction created",
		slog.Uint64("auction_id", id),
		slog.String("auctioneer", caller.Hex()),
	)
	return s.Auction(ctx, id)
}

// PlaceOrders places a batch of orders and returns their ids.
func (s *AuctionService) PlaceOrders(ctx context.Context, auctionID uint64, caller common.Address, buys, sells []uint256.Int) ([]uint64, error) {
	ids, notes, err := s.engine.PlaceOrders(ctx, auctionID, caller, buys, sells)
	if err != nil {
		return nil, fmt.Errorf("auction_service: place orders: %w", err)
	}
	s.publish(ctx, notes)
	return ids, nil
}

// CancelOrders cancels caller's orders and refunds them.
func (s *AuctionService) CancelOrders(ctx context.Context, auctionID uint64, caller common.Address, orderIDs []uint64) error {
	notes, err := s.engine.CancelOrders(ctx, auctionID, caller, orderIDs)
	if err != nil {
		return fmt.Errorf("auction_service: cancel orders: %w", err)
	}
	s.publish(ctx, notes)
	return nil
}

// Precalculate advances the clearing scan by at most maxSteps orders.
func (s *AuctionService) Precalculate(ctx context.Context, auctionID, maxSteps uint64) (CursorView, error) {
	_, notes, err := s.engine.Precalculate(ctx, auctionID, maxSteps)
	if err != nil {
		return CursorView{}, fmt.Errorf("auction_service: precalculate: %w", err)
	}
	s.publish(ctx, notes)
	return s.Cursor(ctx, auctionID)
}

// Settle finalizes an auction whose scan is complete.
func (s *AuctionService) Settle(ctx context.Context, auctionID uint64) (AuctionView, error) {
	_, notes, err := s.engine.Settle(ctx, auctionID)
	if err != nil {
		return AuctionView{}, fmt.Errorf("auction_service: settle: %w", err)
	}
	s.publish(ctx, notes)
	return s.Auction(ctx, auctionID)
}

// Claim pays out caller's orders of a settled auction.
func (s *AuctionService) Claim(ctx context.Context, auctionID uint64, caller common.Address, orderIDs []uint64) (ClaimView, error) {
	res, notes, err := s.engine.Claim(ctx, auctionID, caller, orderIDs)
	if err != nil {
		return ClaimView{}, fmt.Errorf("auction_service: claim: %w", err)
	}
	s.publish(ctx, notes)
	return ClaimView{
		SellingPaid:     res.SellingPaid.Dec(),
		BiddingRefunded: res.BiddingRefunded.Dec(),
	}, nil
}

// SetFeeParameters updates the global fee state. Owner only.
func (s *AuctionService) SetFeeParameters(ctx context.Context, caller common.Address, f domain.FeeParameters) (FeeView, error) {
	notes, err := s.engine.SetFeeParameters(ctx, caller, f)
	if err != nil {
		return FeeView{}, fmt.Errorf("auction_service: set fees: %w", err)
	}
	s.publish(ctx, notes)
	return newFeeView(f), nil
}

// Mint credits an asset balance. Owner only.
func (s *AuctionService) Mint(ctx context.Context, caller, asset, to common.Address, amount uint256.Int) (BalanceView, error) {
	if err := s.engine.Mint(ctx, caller, asset, to, amount); err != nil {
		return BalanceView{}, fmt.Errorf("auction_service: mint: %w", err)
	}
	return s.Balance(ctx, asset, to)
}

// Approve sets caller's allowance for the escrow account.
func (s *AuctionService) Approve(ctx context.Context, caller, asset common.Address, amount uint256.Int) error {
	if err := s.engine.Approve(ctx, caller, asset, amount); err != nil {
		return fmt.Errorf("auction_service: approve: %w", err)
	}
	return nil
}

// publish journals, broadcasts and alerts on committed notifications. State
// is already committed, so failures are logged rather than returned.
func (s *AuctionService) publish(ctx context.Context, notes []domain.Notification) {
	if len(notes) == 0 {
		return
	}
	now := s.now()
	events := make([]domain.Event, len(notes))
	for i, n := range notes {
		events[i] = domain.Event{
			ID:        uuid.NewString(),
			Kind:      n.Kind,
			AuctionID: n.AuctionID,
			OrderID:   n.OrderID,
			UserID:    n.UserID,
			Detail:    n.Detail(),
			CreatedAt: now,
		}
	}

	if s.journal != nil {
		if err := s.journal.Append(ctx, events); err != nil {
			s.logger.ErrorContext(ctx, "auction_service: journal append failed",
				slog.Int("events", len(events)),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, ev := range events {
		if s.bus != nil {
			payload, err := json.Marshal(NewEventView(ev))
			if err == nil {
				err = s.bus.Publish(ctx, EventChannel(ev.AuctionID), payload)
			}
			if err != nil {
				s.logger.WarnContext(ctx, "auction_service: publish event failed",
					slog.String("kind", string(ev.Kind)),
					slog.Uint64("auction_id", ev.AuctionID),
					slog.String("error", err.Error()),
				)
			}
		}
		if s.notifier != nil && (ev.Kind == domain.NotifyAuctionCleared || ev.Kind == domain.NotifyFundingFailed) {
			if err := s.notifier.Notify(ctx, ev); err != nil {
				s.logger.WarnContext(ctx, "auction_service: notify failed",
					slog.Uint64("auction_id", ev.AuctionID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
