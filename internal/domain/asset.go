package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AssetInfo describes a fungible asset known to the ledger.
type AssetInfo struct {
	Address  common.Address `toml:"address"`
	Symbol   string         `toml:"symbol"`
	Decimals uint8          `toml:"decimals"`
}

// Asset is the capability the settlement and claim paths need from a
// fungible asset. Implementations are bound to a single state transition, so
// every transfer commits or aborts together with the call that made it.
type Asset interface {
	Decimals() uint8
	BalanceOf(holder common.Address) (uint256.Int, error)
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}
