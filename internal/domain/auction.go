package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Phase is the lifecycle stage of an auction. It is never stored; it is
// derived from the clock and the auction's dates and flags.
type Phase string

const (
	PhaseUpcoming           Phase = "upcoming"
	PhaseOrderPlacement     Phase = "order_placement"
	PhaseCancellationClosed Phase = "cancellation_closed"
	PhaseEnded              Phase = "ended"
	PhaseSettled            Phase = "settled"
	PhaseFundingFailed      Phase = "funding_failed"
)

// AuctionParams are the caller-supplied arguments of initiateAuction.
type AuctionParams struct {
	SellingAsset         common.Address
	BiddingAsset         common.Address
	OrderPlacementStart  time.Time
	CancellationEnd      time.Time
	AuctionEnd           time.Time
	SellAmount           uint256.Int
	MinBuyAmount         uint256.Int
	MinBidPerOrder       uint256.Int
	MinFundingThreshold  uint256.Int
	AtomicClosureAllowed bool
}

// Auction is the persisted header of a single sale.
type Auction struct {
	ID                   uint64
	AuctioneerID         uint64
	SellingAsset         common.Address
	BiddingAsset         common.Address
	OrderPlacementStart  time.Time
	CancellationEnd      time.Time
	AuctionEnd           time.Time
	SellAmount           uint256.Int
	MinBuyAmount         uint256.Int
	MinBidPerOrder       uint256.Int
	MinFundingThreshold  uint256.Int
	AtomicClosureAllowed bool

	// Fee terms snapshotted at creation.
	FeeNumerator uint64
	FeePolicy    FeePolicy

	OrderCount uint64
	// TotalSellVolume is the escrowed sell volume of all live orders.
	TotalSellVolume uint256.Int

	Settled       bool
	FundingFailed bool
	Clearing      *Clearing
	CreatedAt     time.Time
}

// Clearing is written once by settle and never modified afterwards.
type Clearing struct {
	// ClearingSellAmount is the bidding asset sold by all filled orders.
	ClearingSellAmount uint256.Int
	// ClearingBuyAmount is the selling asset bought by all filled orders.
	ClearingBuyAmount uint256.Int
	// ClearingOrderID is the last filled order in price order, 0 if none.
	ClearingOrderID          uint64
	BidVolumeAtClearingPrice uint256.Int
	// ClearingOrderPayout is the selling asset owed to the clearing order.
	ClearingOrderPayout uint256.Int
	// PriceBuy/PriceSell is the exact clearing price in selling asset per
	// bidding asset. Each payout is floor(volume*PriceBuy/PriceSell).
	PriceBuy    uint256.Int
	PriceSell   uint256.Int
	Fee         uint256.Int
	FeeReceiver common.Address
	SettledAt   time.Time
}

// Cursor is the checkpoint of the resumable clearing scan.
type Cursor struct {
	// Visited is the rank position: live orders consumed so far.
	Visited     uint64
	LastOrderID uint64
	// Cumulative is the sell volume up to and including LastOrderID.
	Cumulative uint256.Int

	Found           bool
	Undersubscribed bool
	// MarginalOrderID is the order at which Cumulative first reached the
	// auction's sell amount, or the last live order when undersubscribed.
	MarginalOrderID      uint64
	VolumeBeforeMarginal uint256.Int
	// PrevOrderID is the order consumed immediately before the marginal one.
	PrevOrderID uint64
}

// ClaimResult totals what a single claim call paid to the caller.
type ClaimResult struct {
	SellingPaid     uint256.Int
	BiddingRefunded uint256.Int
}
