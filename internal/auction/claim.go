package auction

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Claim pays out caller's orders in a settled auction: the selling asset
// for filled volume and a bidding asset refund for everything else. Each
// order can be claimed once; a repeated id fails the whole call.
func (e *Engine) Claim(ctx context.Context, auctionID uint64, caller common.Address, orderIDs []uint64) (domain.ClaimResult, []domain.Notification, error) {
	if len(orderIDs) == 0 {
		return domain.ClaimResult{}, nil, fmt.Errorf("auction: claim: no order ids: %w", domain.ErrInvalidArgument)
	}

	var res domain.ClaimResult
	notes, err := e.update(ctx, func(tx *txn) error {
		a, err := tx.auction(auctionID)
		if err != nil {
			return err
		}
		if !a.Settled {
			return domain.ErrNotSettled
		}
		clearingOrder, err := optionalOrder(tx, a.ID, a.Clearing.ClearingOrderID)
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

			payout, refund, err := payoutFor(&a, clearingOrder, &o)
			if err != nil {
				return fmt.Errorf("order %d: %w", id, err)
			}
			if res.SellingPaid, err = add(&res.SellingPaid, &payout); err != nil {
				return err
			}
			if res.BiddingRefunded, err = add(&res.BiddingRefunded, &refund); err != nil {
				return err
			}

			o.Claimed = true
			if err := tx.putOrder(&o); err != nil {
				return err
			}
			tx.emit(domain.Notification{
				Kind:      domain.NotifyOrderClaimed,
				AuctionID: a.ID,
				OrderID:   o.ID,
				UserID:    userID,
				Payout:    payout,
				Refund:    refund,
			})
		}

		if !res.SellingPaid.IsZero() {
			selling, err := e.asset(tx, a.SellingAsset)
			if err != nil {
				return err
			}
			if err := selling.Transfer(e.opts.Escrow, caller, &res.SellingPaid); err != nil {
				return fmt.Errorf("pay out: %w", err)
			}
		}
		if !res.BiddingRefunded.IsZero() {
			bidding, err := e.asset(tx, a.BiddingAsset)
			if err != nil {
				return err
			}
			if err := bidding.Transfer(e.opts.Escrow, caller, &res.BiddingRefunded); err != nil {
				return fmt.Errorf("refund: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.ClaimResult{}, nil, fmt.Errorf("auction: claim in %d: %w", auctionID, err)
	}
	return res, notes, nil
}

// payoutFor returns the selling asset paid and the bidding asset refunded
// for o. clearingOrder is nil when nothing cleared.
func payoutFor(a *domain.Auction, clearingOrder, o *domain.Order) (payout, refund uint256.Int, err error) {
	clr := a.Clearing
	switch {
	case a.FundingFailed, clearingOrder == nil:
		return payout, o.SellAmount, nil

	case o.ID == clearingOrder.ID:
		payout = clr.ClearingOrderPayout
		refund, err = sub(&o.SellAmount, &clr.BidVolumeAtClearingPrice)
		return payout, refund, err

	case Better(o, clearingOrder):
		payout, err = mulDiv(&o.SellAmount, &clr.PriceBuy, &clr.PriceSell)
		return payout, refund, err

	default:
		return payout, o.SellAmount, nil
	}
}
