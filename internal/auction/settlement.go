package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Settle finalizes an ended auction whose clearing scan is complete. It
// records the clearing, pays the auctioneer and the fee receiver, or, when
// the raised volume misses the funding threshold, returns the whole sell
// amount to the auctioneer. It returns the clearing buy amount.
func (e *Engine) Settle(ctx context.Context, auctionID uint64) (uint256.Int, []domain.Notification, error) {
	now := e.clock.Now()

	var result domain.Clearing
	var failed bool
	notes, err := e.update(ctx, func(tx *txn) error {
		a, err := tx.auction(auctionID)
		if err != nil {
			return err
		}
		if a.Settled {
			return domain.ErrAlreadySettled
		}
		if now.Before(a.AuctionEnd) {
			return fmt.Errorf("settling in phase %s: %w", PhaseAt(&a, now), domain.ErrInvalidPhase)
		}
		c, err := tx.cursor(a.ID)
		if err != nil {
			return err
		}
		if !c.Found {
			return domain.ErrPrecalculationIncomplete
		}

		marginal, err := optionalOrder(tx, a.ID, c.MarginalOrderID)
		if err != nil {
			return err
		}
		prev, err := optionalOrder(tx, a.ID, c.PrevOrderID)
		if err != nil {
			return err
		}
		clr, err := clearingFor(&a, &c, marginal, prev)
		if err != nil {
			return err
		}

		selling, err := e.asset(tx, a.SellingAsset)
		if err != nil {
			return err
		}
		bidding, err := e.asset(tx, a.BiddingAsset)
		if err != nil {
			return err
		}
		auctioneer, err := userAddress(tx, a.AuctioneerID)
		if err != nil {
			return err
		}

		raised := clr.ClearingSellAmount
		if raised.Lt(&a.MinFundingThreshold) {
			a.FundingFailed = true
			if err := selling.Transfer(e.opts.Escrow, auctioneer, &a.SellAmount); err != nil {
				return fmt.Errorf("return sell amount: %w", err)
			}
			tx.emit(domain.Notification{
				Kind:       domain.NotifyFundingFailed,
				AuctionID:  a.ID,
				UserID:     a.AuctioneerID,
				SellAmount: raised,
			})
		} else {
			fees, err := tx.fees()
			if err != nil {
				return err
			}
			clearingOrder := marginal
			if prev != nil && clr.ClearingOrderID == prev.ID {
				clearingOrder = prev
			}
			if fees.Receiver != (common.Address{}) {
				clr.FeeReceiver = fees.Receiver
				if clr.Fee, err = feeFor(&a, &clr, clearingOrder); err != nil {
					return err
				}
			}
			if err := payAuctioneer(&a, &clr, selling, bidding, e.opts.Escrow, auctioneer); err != nil {
				return err
			}
			tx.emit(domain.Notification{
				Kind:       domain.NotifyAuctionCleared,
				AuctionID:  a.ID,
				OrderID:    clr.ClearingOrderID,
				UserID:     a.AuctioneerID,
				SellAmount: clr.ClearingSellAmount,
				BuyAmount:  clr.ClearingBuyAmount,
				Fee:        clr.Fee,
			})
		}

		clr.SettledAt = now.UTC()
		a.Settled = true
		a.Clearing = &clr
		if err := tx.putAuction(&a); err != nil {
			return err
		}
		result, failed = clr, a.FundingFailed
		return nil
	})
	if err != nil {
		return uint256.Int{}, nil, fmt.Errorf("auction: settle %d: %w", auctionID, err)
	}

	e.logger.InfoContext(ctx, "auction: settled",
		slog.Uint64("auction_id", auctionID),
		slog.Bool("funding_failed", failed),
		slog.Uint64("clearing_order_id", result.ClearingOrderID),
		slog.String("clearing_sell_amount", result.ClearingSellAmount.Dec()),
		slog.String("clearing_buy_amount", result.ClearingBuyAmount.Dec()),
		slog.String("fee", result.Fee.Dec()),
	)
	return result.ClearingBuyAmount, notes, nil
}

func optionalOrder(tx *txn, auctionID, orderID uint64) (*domain.Order, error) {
	if orderID == 0 {
		return nil, nil
	}
	o, err := tx.order(auctionID, orderID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// feeFor charges the auction's snapshotted numerator on the raised volume.
// Under FeePolicyFullFillsOnly the filled part of a partially filled
// clearing order is exempt.
func feeFor(a *domain.Auction, clr *domain.Clearing, clearingOrder *domain.Order) (uint256.Int, error) {
	base := clr.ClearingSellAmount
	if a.FeePolicy == domain.FeePolicyFullFillsOnly && clearingOrder != nil &&
		clr.BidVolumeAtClearingPrice.Lt(&clearingOrder.SellAmount) {
		var err error
		if base, err = sub(&base, &clr.BidVolumeAtClearingPrice); err != nil {
			return uint256.Int{}, err
		}
	}
	return mulDiv(&base, uint256.NewInt(a.FeeNumerator), uint256.NewInt(domain.FeeDenominator))
}

// payAuctioneer moves the proceeds net of fee and the unallocated part of
// the sell amount out of escrow.
func payAuctioneer(a *domain.Auction, clr *domain.Clearing, selling, bidding domain.Asset, escrow, auctioneer common.Address) error {
	proceeds, err := sub(&clr.ClearingSellAmount, &clr.Fee)
	if err != nil {
		return err
	}
	if !proceeds.IsZero() {
		if err := bidding.Transfer(escrow, auctioneer, &proceeds); err != nil {
			return fmt.Errorf("pay proceeds: %w", err)
		}
	}
	if !clr.Fee.IsZero() {
		if err := bidding.Transfer(escrow, clr.FeeReceiver, &clr.Fee); err != nil {
			return fmt.Errorf("pay fee: %w", err)
		}
	}

	var allocated uint256.Int
	if !clr.ClearingSellAmount.IsZero() {
		allocated = clr.ClearingBuyAmount
	}
	unsold, err := sub(&a.SellAmount, &allocated)
	if err != nil {
		return err
	}
	if !unsold.IsZero() {
		if err := selling.Transfer(escrow, auctioneer, &unsold); err != nil {
			return fmt.Errorf("return unsold: %w", err)
		}
	}
	return nil
}
