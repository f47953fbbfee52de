package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Validation errors.
var (
	ErrInvalidTimes       = errors.New("invalid auction times")
	ErrZeroAmount         = errors.New("amount must be nonzero")
	ErrBelowMinimumBid    = errors.New("sell amount below minimum bid per order")
	ErrSameAsset          = errors.New("selling and bidding asset must differ")
	ErrUnknownAsset       = errors.New("unknown asset")
	ErrInvalidReserve     = errors.New("min buy amount exceeds sell amount")
	ErrLimitPriceTooHigh  = errors.New("order buy amount exceeds its sell amount")
	ErrOrderLimitExceeded = errors.New("order limit exceeded")
	ErrFeeTooHigh         = errors.New("fee numerator above maximum")
)

// Phase errors.
var (
	ErrInvalidPhase         = errors.New("operation not allowed in current phase")
	ErrPrecalculateTooEarly = errors.New("auction has not ended")
)

// State errors.
var (
	ErrAlreadySettled           = errors.New("auction already settled")
	ErrNotSettled               = errors.New("auction not settled")
	ErrPrecalculationIncomplete = errors.New("clearing precalculation incomplete")
	ErrNotOrderOwner            = errors.New("caller does not own order")
	ErrAlreadyCancelled         = errors.New("order already cancelled")
	ErrAlreadyClaimed           = errors.New("order already claimed")
)

// Arithmetic and asset ledger errors.
var (
	ErrOverflow              = errors.New("arithmetic overflow")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)
