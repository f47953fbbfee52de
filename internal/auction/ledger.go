package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PlaceOrders appends one order per (buy, sell) pair, escrowing each sell
// amount of the bidding asset from caller. Either every order is accepted or
// none is.
func (e *Engine) PlaceOrders(ctx context.Context, auctionID uint64, caller common.Address, buyAmounts, sellAmounts []uint256.Int) ([]uint64, []domain.Notification, error) {
	if len(buyAmounts) == 0 || len(buyAmounts) != len(sellAmounts) {
		return nil, nil, fmt.Errorf("auction: place orders: %d buy and %d sell amounts: %w",
			len(buyAmounts), len(sellAmounts), domain.ErrInvalidArgument)
	}
	now := e.clock.Now()

	ids := make([]uint64, 0, len(buyAmounts))
	notes, err := e.update(ctx, func(tx *txn) error {
		a, err := tx.auction(auctionID)
		if err != nil {
			return err
		}
		if !canPlace(&a, now) {
			return fmt.Errorf("placing in phase %s: %w", PhaseAt(&a, now), domain.ErrInvalidPhase)
		}
		bidding, err := e.asset(tx, a.BiddingAsset)
		if err != nil {
			return err
		}
		userID, err := e.ensureUser(tx, caller)
		if err != nil {
			return err
		}

		for i := range sellAmounts {
			sell, buy := &sellAmounts[i], &buyAmounts[i]
			if err := validateOrder(&a, sell, buy); err != nil {
				return fmt.Errorf("order %d: %w", i, err)
			}
			if a.OrderCount >= e.opts.MaxOrdersPerAuction {
				return fmt.Errorf("auction %d holds %d orders: %w", a.ID, a.OrderCount, domain.ErrOrderLimitExceeded)
			}
			total, err := add(&a.TotalSellVolume, sell)
			if err != nil {
				return fmt.Errorf("order %d: total sell volume: %w", i, err)
			}
			if err := bidding.TransferFrom(e.opts.Escrow, caller, e.opts.Escrow, sell); err != nil {
				return fmt.Errorf("order %d: escrow: %w", i, err)
			}

			a.OrderCount++
			a.TotalSellVolume = total
			o := domain.Order{
				AuctionID:  a.ID,
				ID:         a.OrderCount,
				UserID:     userID,
				SellAmount: *sell,
				BuyAmount:  *buy,
				PlacedAt:   now.UTC().Truncate(time.Second),
			}
			if err := tx.putOrder(&o); err != nil {
				return err
			}
			sellBytes := o.SellAmount.Bytes32()
			tx.put(indexKey(a.ID, priceKey(buy, sell), o.ID), sellBytes[:])

			ids = append(ids, o.ID)
			tx.emit(domain.Notification{
				Kind:       domain.NotifyOrderCreated,
				AuctionID:  a.ID,
				OrderID:    o.ID,
				UserID:     userID,
				SellAmount: o.SellAmount,
				BuyAmount:  o.BuyAmount,
			})
		}
		return tx.putAuction(&a)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("auction: place orders in %d: %w", auctionID, err)
	}

	e.logger.DebugContext(ctx, "auction: orders placed",
		slog.Uint64("auction_id", auctionID),
		slog.String("user", caller.Hex()),
		slog.Int("count", len(ids)),
	)
	return ids, notes, nil
}

// validateOrder checks one order of a PlaceOrders batch. A limit price
// buy/sell may not exceed 1: an order can ask for at most one base unit of
// the selling asset per base unit of bidding asset it offers. Together with
// the reserve cap in validateParams this keeps the selling asset allocated
// at clearing within the escrowed sell amount.
func validateOrder(a *domain.Auction, sell, buy *uint256.Int) error {
	if sell.IsZero() || buy.IsZero() {
		return domain.ErrZeroAmount
	}
	if sell.Lt(&a.MinBidPerOrder) {
		return domain.ErrBelowMinimumBid
	}
	if buy.Gt(sell) {
		return domain.ErrLimitPriceTooHigh
	}
	return nil
}

// CancelOrders cancels caller's orders and refunds their escrow. Allowed
// only before the cancellation cutoff.
func (e *Engine) CancelOrders(ctx context.Context, auctionID uint64, caller common.Address, orderIDs []uint64) ([]domain.Notification, error) {
	if len(orderIDs) == 0 {
		return nil, fmt.Errorf("auction: cancel orders: no order ids: %w", domain.ErrInvalidArgument)
	}
	now := e.clock.Now()

	notes, err := e.update(ctx, func(tx *txn) error {
		a, err := tx.auction(auctionID)
		if err != nil {
			return err
		}
		if !canCancel(&a, now) {
			return fmt.Errorf("cancelling in phase %s: %w", PhaseAt(&a, now), domain.ErrInvalidPhase)
		}
		bidding, err := e.asset(tx, a.BiddingAsset)
		if err != nil {
			return err
		}
		userID, err := lookupUser(tx, caller)
		if err != nil {
			return err
		}

		for _, id := range orderIDs {
			o, err := tx.order(a.ID, id)
			if err != nil {
				return err
			}
			switch {
			case o.UserID != userID:
				return fmt.Errorf("order %d: %w", id, domain.ErrNotOrderOwner)
			case o.Cancelled:
				return fmt.Errorf("order %d: %w", id, domain.ErrAlreadyCancelled)
			case o.Claimed:
				return fmt.Errorf("order %d: %w", id, domain.ErrAlreadyClaimed)
			}

			o.Cancelled = true
			if err := tx.putOrder(&o); err != nil {
				return err
			}
			tx.del(indexKey(a.ID, priceKey(&o.BuyAmount, &o.SellAmount), o.ID))
			if a.TotalSellVolume, err = sub(&a.TotalSellVolume, &o.SellAmount); err != nil {
				return err
			}
			if err := bidding.Transfer(e.opts.Escrow, caller, &o.SellAmount); err != nil {
				return fmt.Errorf("order %d: refund: %w", id, err)
			}
			tx.emit(domain.Notification{
				Kind:      domain.NotifyOrderCancelled,
				AuctionID: a.ID,
				OrderID:   o.ID,
				UserID:    userID,
				Refund:    o.SellAmount,
			})
		}
		return tx.putAuction(&a)
	})
	if err != nil {
		return nil, fmt.Errorf("auction: cancel orders in %d: %w", auctionID, err)
	}
	return notes, nil
}
