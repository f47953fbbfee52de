package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// Order is a sealed sell order of the bidding asset. Its implied limit price
// is BuyAmount/SellAmount and never changes after placement.
type Order struct {
	AuctionID  uint64
	ID         uint64
	UserID     uint64
	SellAmount uint256.Int
	BuyAmount  uint256.Int
	Cancelled  bool
	Claimed    bool
	PlacedAt   time.Time
}

// ListOpts holds common pagination parameters.
type ListOpts struct {
	Limit  int
	Offset int
}
