package auction

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ledgerAsset is the fungible asset ledger kept in the engine's own
// keyspace. Each value is bound to one transaction, so transfers commit or
// roll back together with the call that made them.
type ledgerAsset struct {
	tx   *txn
	info domain.AssetInfo
}

var _ domain.Asset = (*ledgerAsset)(nil)

func (e *Engine) asset(tx *txn, addr common.Address) (*ledgerAsset, error) {
	info, err := tx.assetInfo(addr)
	if err != nil {
		return nil, err
	}
	return &ledgerAsset{tx: tx, info: info}, nil
}

func (a *ledgerAsset) Decimals() uint8 { return a.info.Decimals }

func (a *ledgerAsset) BalanceOf(holder common.Address) (uint256.Int, error) {
	return a.read(balanceKey(a.info.Address, holder))
}

func (a *ledgerAsset) Transfer(from, to common.Address, amount *uint256.Int) error {
	fromBal, err := a.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return fmt.Errorf("%s: %s has %s, needs %s: %w",
			a.info.Symbol, from.Hex(), fromBal.Dec(), amount.Dec(), domain.ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	toBal, err := a.BalanceOf(to)
	if err != nil {
		return err
	}
	newTo, err := add(&toBal, amount)
	if err != nil {
		return err
	}
	var newFrom uint256.Int
	newFrom.Sub(&fromBal, amount)

	a.write(balanceKey(a.info.Address, from), &newFrom)
	a.write(balanceKey(a.info.Address, to), &newTo)
	return nil
}

func (a *ledgerAsset) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	k := allowanceKey(a.info.Address, from, spender)
	allowed, err := a.read(k)
	if err != nil {
		return err
	}
	if allowed.Lt(amount) {
		return fmt.Errorf("%s: %s allows %s %s, needs %s: %w",
			a.info.Symbol, from.Hex(), spender.Hex(), allowed.Dec(), amount.Dec(), domain.ErrInsufficientAllowance)
	}
	if err := a.Transfer(from, to, amount); err != nil {
		return err
	}
	allowed.Sub(&allowed, amount)
	a.write(k, &allowed)
	return nil
}

func (a *ledgerAsset) mint(to common.Address, amount *uint256.Int) error {
	bal, err := a.BalanceOf(to)
	if err != nil {
		return err
	}
	next, err := add(&bal, amount)
	if err != nil {
		return err
	}
	a.write(balanceKey(a.info.Address, to), &next)
	return nil
}

func (a *ledgerAsset) approve(owner, spender common.Address, amount *uint256.Int) {
	a.write(allowanceKey(a.info.Address, owner, spender), amount)
}

func (a *ledgerAsset) read(k []byte) (uint256.Int, error) {
	var v uint256.Int
	b, ok, err := a.tx.get(k)
	if err != nil || !ok {
		return v, err
	}
	v.SetBytes32(b)
	return v, nil
}

func (a *ledgerAsset) write(k []byte, v *uint256.Int) {
	b := v.Bytes32()
	a.tx.put(k, b[:])
}

// RegisterAsset makes an asset known to the ledger. Registering an address
// again updates its symbol and decimals.
func (e *Engine) RegisterAsset(ctx context.Context, info domain.AssetInfo) error {
	if info.Address == (common.Address{}) {
		return fmt.Errorf("auction: register asset: zero address: %w", domain.ErrInvalidArgument)
	}
	_, err := e.update(ctx, func(tx *txn) error {
		v, err := encodeAsset(info)
		if err != nil {
			return err
		}
		tx.put(assetKey(info.Address), v)
		return nil
	})
	if err != nil {
		return fmt.Errorf("auction: register asset: %w", err)
	}
	return nil
}

// Mint credits amount of asset to the given holder. Owner only.
func (e *Engine) Mint(ctx context.Context, caller, asset, to common.Address, amount uint256.Int) error {
	_, err := e.update(ctx, func(tx *txn) error {
		if caller != e.opts.Owner {
			return domain.ErrUnauthorized
		}
		if amount.IsZero() {
			return domain.ErrZeroAmount
		}
		la, err := e.asset(tx, asset)
		if err != nil {
			return err
		}
		return la.mint(to, &amount)
	})
	if err != nil {
		return fmt.Errorf("auction: mint: %w", err)
	}
	return nil
}

// Approve sets the amount of asset the escrow account may pull from caller.
func (e *Engine) Approve(ctx context.Context, caller, asset common.Address, amount uint256.Int) error {
	_, err := e.update(ctx, func(tx *txn) error {
		la, err := e.asset(tx, asset)
		if err != nil {
			return err
		}
		la.approve(caller, e.opts.Escrow, &amount)
		return nil
	})
	if err != nil {
		return fmt.Errorf("auction: approve: %w", err)
	}
	return nil
}
