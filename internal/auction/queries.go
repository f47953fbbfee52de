package auction

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/kv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Balance is one asset's balance of a single holder.
type Balance struct {
	Asset  domain.AssetInfo
	Holder common.Address
	Amount uint256.Int
}

// Auction returns the auction header.
func (e *Engine) Auction(ctx context.Context, id uint64) (domain.Auction, error) {
	var a domain.Auction
	err := e.view(ctx, func(tx *txn) (err error) {
		a, err = tx.auction(id)
		return err
	})
	return a, err
}

// Auctions lists auctions in id order.
func (e *Engine) Auctions(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	var out []domain.Auction
	err := e.view(ctx, func(tx *txn) error {
		return e.page(tx, auctionPrefix(), opts, func(_, v []byte) error {
			a, err := decodeAuction(v)
			if err != nil {
				return err
			}
			out = append(out, a)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("auction: list auctions: %w", err)
	}
	return out, nil
}

// Order returns a single order.
func (e *Engine) Order(ctx context.Context, auctionID, orderID uint64) (domain.Order, error) {
	var o domain.Order
	err := e.view(ctx, func(tx *txn) (err error) {
		o, err = tx.order(auctionID, orderID)
		return err
	})
	return o, err
}

// Orders lists an auction's orders in id order, cancelled ones included.
func (e *Engine) Orders(ctx context.Context, auctionID uint64, opts domain.ListOpts) ([]domain.Order, error) {
	var out []domain.Order
	err := e.view(ctx, func(tx *txn) error {
		if _, err := tx.auction(auctionID); err != nil {
			return err
		}
		return e.page(tx, orderPrefix(auctionID), opts, func(k, v []byte) error {
			o, err := decodeOrder(auctionID, binary.BigEndian.Uint64(k[len(k)-8:]), v)
			if err != nil {
				return err
			}
			out = append(out, o)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("auction: list orders: %w", err)
	}
	return out, nil
}

// Cursor returns the clearing scan checkpoint.
func (e *Engine) Cursor(ctx context.Context, auctionID uint64) (domain.Cursor, error) {
	var c domain.Cursor
	err := e.view(ctx, func(tx *txn) error {
		if _, err := tx.auction(auctionID); err != nil {
			return err
		}
		var err error
		c, err = tx.cursor(auctionID)
		return err
	})
	return c, err
}

// ClearingOrder returns the clearing order of a settled auction.
func (e *Engine) ClearingOrder(ctx context.Context, auctionID uint64) (domain.Order, error) {
	var o domain.Order
	err := e.view(ctx, func(tx *txn) error {
		a, err := tx.auction(auctionID)
		if err != nil {
			return err
		}
		if !a.Settled {
			return domain.ErrNotSettled
		}
		if a.Clearing.ClearingOrderID == 0 {
			return fmt.Errorf("auction %d has no clearing order: %w", auctionID, domain.ErrNotFound)
		}
		o, err = tx.order(auctionID, a.Clearing.ClearingOrderID)
		return err
	})
	return o, err
}

// UserByAddress resolves a registered address.
func (e *Engine) UserByAddress(ctx context.Context, addr common.Address) (domain.User, error) {
	var u domain.User
	err := e.view(ctx, func(tx *txn) error {
		id, err := lookupUser(tx, addr)
		if err != nil {
			return err
		}
		if id == 0 {
			return fmt.Errorf("user %s: %w", addr.Hex(), domain.ErrNotFound)
		}
		u = domain.User{ID: id, Address: addr}
		return nil
	})
	return u, err
}

// UserByID resolves a registry id.
func (e *Engine) UserByID(ctx context.Context, id uint64) (domain.User, error) {
	var u domain.User
	err := e.view(ctx, func(tx *txn) error {
		addr, err := userAddress(tx, id)
		if err != nil {
			return err
		}
		u = domain.User{ID: id, Address: addr}
		return nil
	})
	return u, err
}

// FeeParameters returns the current global fee state.
func (e *Engine) FeeParameters(ctx context.Context) (domain.FeeParameters, error) {
	var f domain.FeeParameters
	err := e.view(ctx, func(tx *txn) (err error) {
		f, err = tx.fees()
		return err
	})
	return f, err
}

// Asset returns a registered asset.
func (e *Engine) Asset(ctx context.Context, addr common.Address) (domain.AssetInfo, error) {
	var info domain.AssetInfo
	err := e.view(ctx, func(tx *txn) (err error) {
		info, err = tx.assetInfo(addr)
		return err
	})
	return info, err
}

// Assets lists every registered asset in address order.
func (e *Engine) Assets(ctx context.Context) ([]domain.AssetInfo, error) {
	var out []domain.AssetInfo
	err := e.view(ctx, func(tx *txn) error {
		return e.page(tx, []byte{prefixAsset}, domain.ListOpts{}, func(k, v []byte) error {
			info, err := decodeAsset(common.BytesToAddress(k[1:]), v)
			if err != nil {
				return err
			}
			out = append(out, info)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("auction: list assets: %w", err)
	}
	return out, nil
}

// BalanceOf returns holder's balance of asset.
func (e *Engine) BalanceOf(ctx context.Context, asset, holder common.Address) (Balance, error) {
	var b Balance
	err := e.view(ctx, func(tx *txn) error {
		la, err := e.asset(tx, asset)
		if err != nil {
			return err
		}
		amount, err := la.BalanceOf(holder)
		if err != nil {
			return err
		}
		b = Balance{Asset: la.info, Holder: holder, Amount: amount}
		return nil
	})
	return b, err
}

// Allowance returns what spender may still pull from owner.
func (e *Engine) Allowance(ctx context.Context, asset, owner, spender common.Address) (uint256.Int, error) {
	var v uint256.Int
	err := e.view(ctx, func(tx *txn) error {
		la, err := e.asset(tx, asset)
		if err != nil {
			return err
		}
		v, err = la.read(allowanceKey(asset, owner, spender))
		return err
	})
	return v, err
}

// Escrow returns the escrow account's balance of every registered asset.
// After all claims it holds only rounding remainders of the selling assets.
func (e *Engine) Escrow(ctx context.Context) ([]Balance, error) {
	assets, err := e.Assets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(assets))
	for _, info := range assets {
		b, err := e.BalanceOf(ctx, info.Address, e.opts.Escrow)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// page walks committed keys under prefix, applying the offset and limit.
// A zero limit means no limit.
func (e *Engine) page(tx *txn, prefix []byte, opts domain.ListOpts, fn func(k, v []byte) error) error {
	it, err := e.db.Iterator(tx.ctx, prefix, kv.PrefixEnd(prefix))
	if err != nil {
		return err
	}
	defer it.Close()

	skipped, taken := 0, 0
	for it.Next() {
		if skipped < opts.Offset {
			skipped++
			continue
		}
		if opts.Limit > 0 && taken >= opts.Limit {
			break
		}
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
		taken++
	}
	return it.Error()
}
