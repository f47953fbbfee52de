package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/kv"
	"github.com/holiman/uint256"
)

// Precalculate advances the clearing scan of an ended auction by at most
// maxSteps live orders in price order and reports whether the clearing
// order is now known. The cursor persists between calls, so any chunking of
// the scan reaches the same result as a single call.
func (e *Engine) Precalculate(ctx context.Context, auctionID uint64, maxSteps uint64) (bool, []domain.Notification, error) {
	if maxSteps == 0 {
		return false, nil, fmt.Errorf("auction: precalculate %d: max steps must be positive: %w", auctionID, domain.ErrInvalidArgument)
	}
	now := e.clock.Now()

	var found bool
	notes, err := e.update(ctx, func(tx *txn) error {
		a, err := tx.auction(auctionID)
		if err != nil {
			return err
		}
		if a.Settled {
			return domain.ErrAlreadySettled
		}
		if now.Before(a.AuctionEnd) {
			return domain.ErrPrecalculateTooEarly
		}
		c, err := tx.cursor(a.ID)
		if err != nil {
			return err
		}
		if c.Found {
			found = true
			return nil
		}

		steps, err := e.scan(tx, &a, &c, maxSteps)
		if err != nil {
			return err
		}
		if err := tx.putCursor(a.ID, &c); err != nil {
			return err
		}
		found = c.Found
		e.logger.DebugContext(ctx, "auction: precalculate step",
			slog.Uint64("auction_id", a.ID),
			slog.Uint64("steps", steps),
			slog.Uint64("visited", c.Visited),
			slog.Bool("found", c.Found),
		)
		if c.Found {
			tx.emit(domain.Notification{
				Kind:       domain.NotifyClearingFound,
				AuctionID:  a.ID,
				OrderID:    c.MarginalOrderID,
				SellAmount: c.Cumulative,
			})
		}
		return nil
	})
	if err != nil {
		return false, nil, fmt.Errorf("auction: precalculate %d: %w", auctionID, err)
	}
	return found, notes, nil
}

// scan consumes up to maxSteps index entries after the cursor position.
// The order set is frozen once the auction has ended, so the index can be
// read from committed state while the cursor is written through tx.
func (e *Engine) scan(tx *txn, a *domain.Auction, c *domain.Cursor, maxSteps uint64) (uint64, error) {
	prefix := indexPrefix(a.ID)
	start := prefix
	if c.Visited > 0 {
		last, err := tx.order(a.ID, c.LastOrderID)
		if err != nil {
			return 0, err
		}
		// Strictly after the last consumed entry.
		start = append(indexKey(a.ID, priceKey(&last.BuyAmount, &last.SellAmount), last.ID), 0)
	}

	it, err := e.db.Iterator(tx.ctx, start, kv.PrefixEnd(prefix))
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var steps uint64
	budgetSpent := false
	for it.Next() {
		if steps == maxSteps {
			budgetSpent = true
			break
		}
		var sell uint256.Int
		sell.SetBytes32(it.Value())
		next, err := add(&c.Cumulative, &sell)
		if err != nil {
			return steps, err
		}

		before := c.Cumulative
		prev := c.LastOrderID
		c.Visited++
		c.LastOrderID = orderIDFromIndex(it.Key())
		c.Cumulative = next
		steps++

		if !c.Cumulative.Lt(&a.SellAmount) {
			c.Found = true
			c.MarginalOrderID = c.LastOrderID
			c.VolumeBeforeMarginal = before
			c.PrevOrderID = prev
			return steps, nil
		}
	}
	if err := it.Error(); err != nil {
		return steps, err
	}
	if budgetSpent {
		return steps, nil
	}

	// Book exhausted below the sell amount.
	c.Found = true
	c.Undersubscribed = true
	c.MarginalOrderID = c.LastOrderID
	if c.LastOrderID != 0 {
		last, err := tx.order(a.ID, c.LastOrderID)
		if err != nil {
			return steps, err
		}
		if c.VolumeBeforeMarginal, err = sub(&c.Cumulative, &last.SellAmount); err != nil {
			return steps, err
		}
	}
	return steps, nil
}

// clearingFor derives the clearing record from a completed cursor.
// marginal is the cursor's marginal order and prev the order consumed just
// before it; either may be nil when the cursor names none.
//
// The price is kept as the exact fraction PriceBuy/PriceSell so payouts
// round once. ClearingBuyAmount is floor(ClearingSellAmount*price), which
// bounds the sum of all payouts.
func clearingFor(a *domain.Auction, c *domain.Cursor, marginal, prev *domain.Order) (domain.Clearing, error) {
	var clr domain.Clearing
	var err error

	switch {
	case marginal == nil:
		// No live orders.
		clr.PriceBuy, clr.PriceSell = a.MinBuyAmount, a.SellAmount
		clr.ClearingBuyAmount = a.MinBuyAmount
		return clr, nil

	case c.Undersubscribed:
		clr.ClearingOrderID = marginal.ID
		clr.BidVolumeAtClearingPrice = marginal.SellAmount
		clr.ClearingSellAmount = c.Cumulative
		// The reserve minBuy/cumulative binds when it beats the marginal price.
		if fracLess(&marginal.BuyAmount, &marginal.SellAmount, &a.MinBuyAmount, &c.Cumulative) {
			clr.PriceBuy, clr.PriceSell = a.MinBuyAmount, c.Cumulative
		} else {
			clr.PriceBuy, clr.PriceSell = marginal.BuyAmount, marginal.SellAmount
		}

	case c.Cumulative.Eq(&a.SellAmount) || a.AtomicClosureAllowed:
		clr.ClearingOrderID = marginal.ID
		if clr.BidVolumeAtClearingPrice, err = sub(&a.SellAmount, &c.VolumeBeforeMarginal); err != nil {
			return clr, err
		}
		clr.ClearingSellAmount = a.SellAmount
		clr.PriceBuy, clr.PriceSell = marginal.BuyAmount, marginal.SellAmount

	case prev != nil:
		clr.ClearingOrderID = prev.ID
		clr.BidVolumeAtClearingPrice = prev.SellAmount
		clr.ClearingSellAmount = c.VolumeBeforeMarginal
		clr.PriceBuy, clr.PriceSell = prev.BuyAmount, prev.SellAmount

	default:
		// The first order alone overshoots and may not be split: nothing clears.
		return clr, nil
	}

	if clr.ClearingBuyAmount, err = mulDiv(&clr.ClearingSellAmount, &clr.PriceBuy, &clr.PriceSell); err != nil {
		return clr, err
	}
	if clr.ClearingOrderPayout, err = mulDiv(&clr.BidVolumeAtClearingPrice, &clr.PriceBuy, &clr.PriceSell); err != nil {
		return clr, err
	}
	return clr, nil
}
