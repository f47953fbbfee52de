package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/batchauction/internal/auction"
	"github.com/alanyoungcy/batchauction/internal/domain"
)

// Auction renders one auction with its current phase.
func (s *AuctionService) Auction(ctx context.Context, id uint64) (AuctionView, error) {
	a, err := s.engine.Auction(ctx, id)
	if err != nil {
		return AuctionView{}, fmt.Errorf("auction_service: get auction %d: %w", id, err)
	}
	return s.auctionView(ctx, &a)
}

// Auctions lists auctions in id order.
func (s *AuctionService) Auctions(ctx context.Context, opts domain.ListOpts) ([]AuctionView, error) {
	list, err := s.engine.Auctions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("auction_service: list auctions: %w", err)
	}
	out := make([]AuctionView, 0, len(list))
	for i := range list {
		v, err := s.auctionView(ctx, &list[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *AuctionService) auctionView(ctx context.Context, a *domain.Auction) (AuctionView, error) {
	selling, bidding, err := s.pair(ctx, a)
	if err != nil {
		return AuctionView{}, err
	}
	return newAuctionView(a, selling, bidding, auction.PhaseAt(a, s.engine.Now())), nil
}

func (s *AuctionService) pair(ctx context.Context, a *domain.Auction) (selling, bidding domain.AssetInfo, err error) {
	if selling, err = s.engine.Asset(ctx, a.SellingAsset); err != nil {
		return selling, bidding, fmt.Errorf("auction_service: selling asset: %w", err)
	}
	if bidding, err = s.engine.Asset(ctx, a.BiddingAsset); err != nil {
		return selling, bidding, fmt.Errorf("auction_service: bidding asset: %w", err)
	}
	return selling, bidding, nil
}

// Order renders a single order.
func (s *AuctionService) Order(ctx context.Context, auctionID, orderID uint64) (OrderView, error) {
	a, err := s.engine.Auction(ctx, auctionID)
	if err != nil {
		return OrderView{}, fmt.Errorf("auction_service: get auction %d: %w", auctionID, err)
	}
	o, err := s.engine.Order(ctx, auctionID, orderID)
	if err != nil {
		return OrderView{}, fmt.Errorf("auction_service: get order %d/%d: %w", auctionID, orderID, err)
	}
	selling, bidding, err := s.pair(ctx, &a)
	if err != nil {
		return OrderView{}, err
	}
	return newOrderView(&o, selling, bidding), nil
}

// Orders lists an auction's orders in id order.
func (s *AuctionService) Orders(ctx context.Context, auctionID uint64, opts domain.ListOpts) ([]OrderView, error) {
	a, err := s.engine.Auction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("auction_service: get auction %d: %w", auctionID, err)
	}
	selling, bidding, err := s.pair(ctx, &a)
	if err != nil {
		return nil, err
	}
	list, err := s.engine.Orders(ctx, auctionID, opts)
	if err != nil {
		return nil, fmt.Errorf("auction_service: list orders: %w", err)
	}
	out := make([]OrderView, 0, len(list))
	for i := range list {
		out = append(out, newOrderView(&list[i], selling, bidding))
	}
	return out, nil
}

// Cursor renders the clearing scan checkpoint.
func (s *AuctionService) Cursor(ctx context.Context, auctionID uint64) (CursorView, error) {
	c, err := s.engine.Cursor(ctx, auctionID)
	if err != nil {
		return CursorView{}, fmt.Errorf("auction_service: cursor: %w", err)
	}
	return newCursorView(&c), nil
}

// AuctionSnapshot renders an auction together with all of its orders. It
// satisfies the archiver's snapshot source.
func (s *AuctionService) AuctionSnapshot(ctx context.Context, auctionID uint64) (any, error) {
	av, err := s.Auction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	orders, err := s.Orders(ctx, auctionID, domain.ListOpts{})
	if err != nil {
		return nil, err
	}
	return AuctionSnapshot{Auction: av, Orders: orders}, nil
}

// Fees renders the current fee parameters.
func (s *AuctionService) Fees(ctx context.Context) (FeeView, error) {
	f, err := s.engine.FeeParameters(ctx)
	if err != nil {
		return FeeView{}, fmt.Errorf("auction_service: fees: %w", err)
	}
	return newFeeView(f), nil
}

// UserByAddress looks up a registered user.
func (s *AuctionService) UserByAddress(ctx context.Context, addr common.Address) (UserView, error) {
	u, err := s.engine.UserByAddress(ctx, addr)
	if err != nil {
		return UserView{}, fmt.Errorf("auction_service: user %s: %w", addr.Hex(), err)
	}
	return UserView{ID: u.ID, Address: u.Address.Hex()}, nil
}

// UserByID looks up a registered user by id.
func (s *AuctionService) UserByID(ctx context.Context, id uint64) (UserView, error) {
	u, err := s.engine.UserByID(ctx, id)
	if err != nil {
		return UserView{}, fmt.Errorf("auction_service: user %d: %w", id, err)
	}
	return UserView{ID: u.ID, Address: u.Address.Hex()}, nil
}

// Assets lists registered assets.
func (s *AuctionService) Assets(ctx context.Context) ([]AssetView, error) {
	list, err := s.engine.Assets(ctx)
	if err != nil {
		return nil, fmt.Errorf("auction_service: assets: %w", err)
	}
	out := make([]AssetView, 0, len(list))
	for _, info := range list {
		out = append(out, newAssetView(info))
	}
	return out, nil
}

// Balance renders holder's balance of asset.
func (s *AuctionService) Balance(ctx context.Context, asset, holder common.Address) (BalanceView, error) {
	b, err := s.engine.BalanceOf(ctx, asset, holder)
	if err != nil {
		return BalanceView{}, fmt.Errorf("auction_service: balance: %w", err)
	}
	return newBalanceView(b), nil
}

// Escrow renders the escrow account's balance of every asset.
func (s *AuctionService) Escrow(ctx context.Context) ([]BalanceView, error) {
	list, err := s.engine.Escrow(ctx)
	if err != nil {
		return nil, fmt.Errorf("auction_service: escrow: %w", err)
	}
	out := make([]BalanceView, 0, len(list))
	for _, b := range list {
		out = append(out, newBalanceView(b))
	}
	return out, nil
}

// Events reads the journal. Without a journal it returns an empty list.
func (s *AuctionService) Events(ctx context.Context, q domain.EventQuery) ([]EventView, error) {
	if s.journal == nil {
		return []EventView{}, nil
	}
	list, err := s.journal.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("auction_service: events: %w", err)
	}
	out := make([]EventView, 0, len(list))
	for _, e := range list {
		out = append(out, NewEventView(e))
	}
	return out, nil
}
