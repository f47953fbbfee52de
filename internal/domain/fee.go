package domain

import "github.com/ethereum/go-ethereum/common"

const (
	// FeeDenominator is the fixed denominator of every fee numerator.
	FeeDenominator = 1000
	// MaxFeeNumerator caps the protocol fee at 1.5%.
	MaxFeeNumerator = 15
)

// FeePolicy selects which filled volume the protocol fee is charged on.
type FeePolicy string

const (
	// FeePolicyAllFilled charges the fee on every filled unit, including the
	// prorated portion of a partially filled clearing order.
	FeePolicyAllFilled FeePolicy = "all_filled"
	// FeePolicyFullFillsOnly exempts the prorated portion of a partially
	// filled clearing order.
	FeePolicyFullFillsOnly FeePolicy = "full_fills_only"
)

// Valid reports whether p is a known policy.
func (p FeePolicy) Valid() bool {
	return p == FeePolicyAllFilled || p == FeePolicyFullFillsOnly
}

// FeeParameters is the global, owner-mutable fee state.
type FeeParameters struct {
	Numerator uint64
	Receiver  common.Address
}
