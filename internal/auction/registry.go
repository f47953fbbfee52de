package auction

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// PhaseAt derives the lifecycle phase of a at time now.
func PhaseAt(a *domain.Auction, now time.Time) domain.Phase {
	switch {
	case a.Settled && a.FundingFailed:
		return domain.PhaseFundingFailed
	case a.Settled:
		return domain.PhaseSettled
	case now.Before(a.OrderPlacementStart):
		return domain.PhaseUpcoming
	case now.Before(a.CancellationEnd):
		return domain.PhaseOrderPlacement
	case now.Before(a.AuctionEnd):
		return domain.PhaseCancellationClosed
	default:
		return domain.PhaseEnded
	}
}

func canPlace(a *domain.Auction, now time.Time) bool {
	p := PhaseAt(a, now)
	return p == domain.PhaseOrderPlacement || p == domain.PhaseCancellationClosed
}

func canCancel(a *domain.Auction, now time.Time) bool {
	return PhaseAt(a, now) == domain.PhaseOrderPlacement
}

// validateParams rejects a reserve minBuy/sell above 1 for the same reason
// validateOrder caps limit prices.
func validateParams(p *domain.AuctionParams, now time.Time) error {
	if p.SellingAsset == p.BiddingAsset {
		return domain.ErrSameAsset
	}
	if p.SellAmount.IsZero() || p.MinBuyAmount.IsZero() {
		return domain.ErrZeroAmount
	}
	if p.MinBuyAmount.Gt(&p.SellAmount) {
		return domain.ErrInvalidReserve
	}
	start, cancel, end := p.OrderPlacementStart, p.CancellationEnd, p.AuctionEnd
	if cancel.Before(start) || end.Before(cancel) || start.Before(now) || !end.After(now) {
		return domain.ErrInvalidTimes
	}
	return nil
}

// InitiateAuction opens a sale of p.SellAmount of p.SellingAsset, pulling the
// amount from the caller into escrow. The caller must have approved the
// escrow account for it beforehand.
func (e *Engine) InitiateAuction(ctx context.Context, caller common.Address, p domain.AuctionParams) (uint64, []domain.Notification, error) {
	now := e.clock.Now().UTC().Truncate(time.Second)
	p.OrderPlacementStart = p.OrderPlacementStart.UTC().Truncate(time.Second)
	p.CancellationEnd = p.CancellationEnd.UTC().Truncate(time.Second)
	p.AuctionEnd = p.AuctionEnd.UTC().Truncate(time.Second)

	var id uint64
	notes, err := e.update(ctx, func(tx *txn) error {
		if err := validateParams(&p, now); err != nil {
			return err
		}
		selling, err := e.asset(tx, p.SellingAsset)
		if err != nil {
			return err
		}
		if _, err := tx.assetInfo(p.BiddingAsset); err != nil {
			return err
		}

		auctioneer, err := e.ensureUser(tx, caller)
		if err != nil {
			return err
		}
		fees, err := tx.fees()
		if err != nil {
			return err
		}
		if id, err = tx.nextSeq(keyAuctionSeq); err != nil {
			return err
		}

		if err := selling.TransferFrom(e.opts.Escrow, caller, e.opts.Escrow, &p.SellAmount); err != nil {
			return fmt.Errorf("deposit sell amount: %w", err)
		}

		a := domain.Auction{
			ID:                   id,
			AuctioneerID:         auctioneer,
			SellingAsset:         p.SellingAsset,
			BiddingAsset:         p.BiddingAsset,
			OrderPlacementStart:  p.OrderPlacementStart,
			CancellationEnd:      p.CancellationEnd,
			AuctionEnd:           p.AuctionEnd,
			SellAmount:           p.SellAmount,
			MinBuyAmount:         p.MinBuyAmount,
			MinBidPerOrder:       p.MinBidPerOrder,
			MinFundingThreshold:  p.MinFundingThreshold,
			AtomicClosureAllowed: p.AtomicClosureAllowed,
			FeeNumerator:         fees.Numerator,
			FeePolicy:            e.opts.FeePolicy,
			CreatedAt:            now,
		}
		if err := tx.putAuction(&a); err != nil {
			return err
		}
		tx.emit(domain.Notification{
			Kind:         domain.NotifyAuctionCreated,
			AuctionID:    id,
			UserID:       auctioneer,
			Address:      caller,
			SellAmount:   p.SellAmount,
			BuyAmount:    p.MinBuyAmount,
			FeeNumerator: fees.Numerator,
		})
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("auction: initiate: %w", err)
	}

	e.logger.InfoContext(ctx, "auction: initiated",
		slog.Uint64("auction_id", id),
		slog.String("auctioneer", caller.Hex()),
		slog.String("sell_amount", p.SellAmount.Dec()),
	)
	return id, notes, nil
}

func validateFees(f domain.FeeParameters) error {
	if f.Numerator > domain.MaxFeeNumerator {
		return domain.ErrFeeTooHigh
	}
	if f.Numerator > 0 && f.Receiver == (common.Address{}) {
		return fmt.Errorf("fee receiver required for nonzero fee: %w", domain.ErrInvalidArgument)
	}
	return nil
}

// SetFeeParameters replaces the global fee state. Only auctions created
// afterwards use the new numerator; the receiver applies at every later
// settlement.
func (e *Engine) SetFeeParameters(ctx context.Context, caller common.Address, f domain.FeeParameters) ([]domain.Notification, error) {
	notes, err := e.update(ctx, func(tx *txn) error {
		if caller != e.opts.Owner {
			return domain.ErrUnauthorized
		}
		if err := validateFees(f); err != nil {
			return err
		}
		if err := tx.putFees(f); err != nil {
			return err
		}
		tx.emit(domain.Notification{
			Kind:         domain.NotifyFeeParametersUpdated,
			Address:      f.Receiver,
			FeeNumerator: f.Numerator,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("auction: set fee parameters: %w", err)
	}
	return notes, nil
}

// ensureUser returns the registry id of addr, assigning the next id on
// first sight.
func (e *Engine) ensureUser(tx *txn, addr common.Address) (uint64, error) {
	id, err := lookupUser(tx, addr)
	if err != nil || id != 0 {
		return id, err
	}
	if id, err = tx.nextSeq(keyUserSeq); err != nil {
		return 0, err
	}
	tx.put(userKey(addr), be64(id))
	tx.put(userIDKey(id), addr.Bytes())
	tx.emit(domain.Notification{Kind: domain.NotifyUserRegistered, UserID: id, Address: addr})
	return id, nil
}

// lookupUser returns 0 for addresses that never interacted.
func lookupUser(tx *txn, addr common.Address) (uint64, error) {
	v, ok, err := tx.get(userKey(addr))
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

func userAddress(tx *txn, id uint64) (common.Address, error) {
	v, ok, err := tx.get(userIDKey(id))
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return common.BytesToAddress(v), nil
}
