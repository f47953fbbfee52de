package auction

import (
	"math/big"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/holiman/uint256"
)

// priceKeyLen fits floor(buy*2^512/sell) for any buy <= sell < 2^256.
const priceKeyLen = 96

// Better reports whether a ranks strictly ahead of b: a lower implied price
// buy/sell, or the same price and a lower id. Products are compared in full
// precision.
func Better(a, b *domain.Order) bool {
	l := new(big.Int).Mul(a.BuyAmount.ToBig(), b.SellAmount.ToBig())
	r := new(big.Int).Mul(b.BuyAmount.ToBig(), a.SellAmount.ToBig())
	if c := l.Cmp(r); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

// fracLess reports whether an/ad < bn/bd. Denominators must be nonzero.
func fracLess(an, ad, bn, bd *uint256.Int) bool {
	l := new(big.Int).Mul(an.ToBig(), bd.ToBig())
	r := new(big.Int).Mul(bn.ToBig(), ad.ToBig())
	return l.Cmp(r) < 0
}

// priceKey encodes buy/sell as a fixed-width big-endian fraction with 512
// fractional bits. Distinct prices with 256-bit denominators differ by more
// than 2^-512, so byte order of the key matches the price order exactly.
func priceKey(buy, sell *uint256.Int) []byte {
	n := new(big.Int).Lsh(buy.ToBig(), 512)
	n.Quo(n, sell.ToBig())
	return n.FillBytes(make([]byte, priceKeyLen))
}

// mulDiv returns floor(x*y/d) with a 512-bit intermediate, or 0 when d is 0.
func mulDiv(x, y, d *uint256.Int) (uint256.Int, error) {
	var z uint256.Int
	if d.IsZero() {
		return z, nil
	}
	if _, overflow := z.MulDivOverflow(x, y, d); overflow {
		return uint256.Int{}, domain.ErrOverflow
	}
	return z, nil
}

func add(x, y *uint256.Int) (uint256.Int, error) {
	var z uint256.Int
	if _, overflow := z.AddOverflow(x, y); overflow {
		return uint256.Int{}, domain.ErrOverflow
	}
	return z, nil
}

func sub(x, y *uint256.Int) (uint256.Int, error) {
	var z uint256.Int
	if _, underflow := z.SubOverflow(x, y); underflow {
		return uint256.Int{}, domain.ErrOverflow
	}
	return z, nil
}
