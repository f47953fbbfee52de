package auction

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"
)

// Records are stored as deterministic CBOR with integer keys. Amounts are
// minimal big-endian byte strings and times are unix seconds.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("auction: cbor enc mode: %v", err))
	}
}

type auctionRecord struct {
	ID                   uint64          `cbor:"1,keyasint"`
	AuctioneerID         uint64          `cbor:"2,keyasint"`
	SellingAsset         []byte          `cbor:"3,keyasint"`
	BiddingAsset         []byte          `cbor:"4,keyasint"`
	OrderPlacementStart  int64           `cbor:"5,keyasint"`
	CancellationEnd      int64           `cbor:"6,keyasint"`
	AuctionEnd           int64           `cbor:"7,keyasint"`
	SellAmount           []byte          `cbor:"8,keyasint"`
	MinBuyAmount         []byte          `cbor:"9,keyasint"`
	MinBidPerOrder       []byte          `cbor:"10,keyasint"`
	MinFundingThreshold  []byte          `cbor:"11,keyasint"`
	AtomicClosureAllowed bool            `cbor:"12,keyasint"`
	FeeNumerator         uint64          `cbor:"13,keyasint"`
	FeePolicy            string          `cbor:"14,keyasint"`
	OrderCount           uint64          `cbor:"15,keyasint"`
	TotalSellVolume      []byte          `cbor:"16,keyasint"`
	Settled              bool            `cbor:"17,keyasint"`
	FundingFailed        bool            `cbor:"18,keyasint"`
	Clearing             *clearingRecord `cbor:"19,keyasint,omitempty"`
	CreatedAt            int64           `cbor:"20,keyasint"`
}

type clearingRecord struct {
	SellAmount  []byte `cbor:"1,keyasint"`
	BuyAmount   []byte `cbor:"2,keyasint"`
	OrderID     uint64 `cbor:"3,keyasint"`
	BidVolume   []byte `cbor:"4,keyasint"`
	OrderPayout []byte `cbor:"5,keyasint"`
	Fee         []byte `cbor:"6,keyasint"`
	FeeReceiver []byte `cbor:"7,keyasint"`
	SettledAt   int64  `cbor:"8,keyasint"`
	PriceBuy    []byte `cbor:"9,keyasint"`
	PriceSell   []byte `cbor:"10,keyasint"`
}

type orderRecord struct {
	UserID     uint64 `cbor:"1,keyasint"`
	SellAmount []byte `cbor:"2,keyasint"`
	BuyAmount  []byte `cbor:"3,keyasint"`
	Cancelled  bool   `cbor:"4,keyasint"`
	Claimed    bool   `cbor:"5,keyasint"`
	PlacedAt   int64  `cbor:"6,keyasint"`
}

type cursorRecord struct {
	Visited              uint64 `cbor:"1,keyasint"`
	LastOrderID          uint64 `cbor:"2,keyasint"`
	Cumulative           []byte `cbor:"3,keyasint"`
	Found                bool   `cbor:"4,keyasint"`
	Undersubscribed      bool   `cbor:"5,keyasint"`
	MarginalOrderID      uint64 `cbor:"6,keyasint"`
	VolumeBeforeMarginal []byte `cbor:"7,keyasint"`
	PrevOrderID          uint64 `cbor:"8,keyasint"`
}

type feeRecord struct {
	Numerator uint64 `cbor:"1,keyasint"`
	Receiver  []byte `cbor:"2,keyasint"`
}

type assetRecord struct {
	Symbol   string `cbor:"1,keyasint"`
	Decimals uint8  `cbor:"2,keyasint"`
}

func amt(v *uint256.Int) []byte { return v.Bytes() }

func toAmt(b []byte) uint256.Int {
	var v uint256.Int
	v.SetBytes(b)
	return v
}

func unix(t time.Time) int64 { return t.Unix() }

func fromUnix(s int64) time.Time { return time.Unix(s, 0).UTC() }

func encodeAuction(a *domain.Auction) ([]byte, error) {
	r := auctionRecord{
		ID:                   a.ID,
		AuctioneerID:         a.AuctioneerID,
		SellingAsset:         a.SellingAsset.Bytes(),
		BiddingAsset:         a.BiddingAsset.Bytes(),
		OrderPlacementStart:  unix(a.OrderPlacementStart),
		CancellationEnd:      unix(a.CancellationEnd),
		AuctionEnd:           unix(a.AuctionEnd),
		SellAmount:           amt(&a.SellAmount),
		MinBuyAmount:         amt(&a.MinBuyAmount),
		MinBidPerOrder:       amt(&a.MinBidPerOrder),
		MinFundingThreshold:  amt(&a.MinFundingThreshold),
		AtomicClosureAllowed: a.AtomicClosureAllowed,
		FeeNumerator:         a.FeeNumerator,
		FeePolicy:            string(a.FeePolicy),
		OrderCount:           a.OrderCount,
		TotalSellVolume:      amt(&a.TotalSellVolume),
		Settled:              a.Settled,
		FundingFailed:        a.FundingFailed,
		CreatedAt:            unix(a.CreatedAt),
	}
	if c := a.Clearing; c != nil {
		r.Clearing = &clearingRecord{
			SellAmount:  amt(&c.ClearingSellAmount),
			BuyAmount:   amt(&c.ClearingBuyAmount),
			OrderID:     c.ClearingOrderID,
			BidVolume:   amt(&c.BidVolumeAtClearingPrice),
			OrderPayout: amt(&c.ClearingOrderPayout),
			Fee:         amt(&c.Fee),
			FeeReceiver: c.FeeReceiver.Bytes(),
			SettledAt:   unix(c.SettledAt),
			PriceBuy:    amt(&c.PriceBuy),
			PriceSell:   amt(&c.PriceSell),
		}
	}
	return encMode.Marshal(r)
}

func decodeAuction(b []byte) (domain.Auction, error) {
	var r auctionRecord
	if err := cbor.Unmarshal(b, &r); err != nil {
		return domain.Auction{}, fmt.Errorf("auction: decode auction: %w", err)
	}
	a := domain.Auction{
		ID:                   r.ID,
		AuctioneerID:         r.AuctioneerID,
		SellingAsset:         common.BytesToAddress(r.SellingAsset),
		BiddingAsset:         common.BytesToAddress(r.BiddingAsset),
		OrderPlacementStart:  fromUnix(r.OrderPlacementStart),
		CancellationEnd:      fromUnix(r.CancellationEnd),
		AuctionEnd:           fromUnix(r.AuctionEnd),
		SellAmount:           toAmt(r.SellAmount),
		MinBuyAmount:         toAmt(r.MinBuyAmount),
		MinBidPerOrder:       toAmt(r.MinBidPerOrder),
		MinFundingThreshold:  toAmt(r.MinFundingThreshold),
		AtomicClosureAllowed: r.AtomicClosureAllowed,
		FeeNumerator:         r.FeeNumerator,
		FeePolicy:            domain.FeePolicy(r.FeePolicy),
		OrderCount:           r.OrderCount,
		TotalSellVolume:      toAmt(r.TotalSellVolume),
		Settled:              r.Settled,
		FundingFailed:        r.FundingFailed,
		CreatedAt:            fromUnix(r.CreatedAt),
	}
	if c := r.Clearing; c != nil {
		a.Clearing = &domain.Clearing{
			ClearingSellAmount:       toAmt(c.SellAmount),
			ClearingBuyAmount:        toAmt(c.BuyAmount),
			ClearingOrderID:          c.OrderID,
			BidVolumeAtClearingPrice: toAmt(c.BidVolume),
			ClearingOrderPayout:      toAmt(c.OrderPayout),
			Fee:                      toAmt(c.Fee),
			FeeReceiver:              common.BytesToAddress(c.FeeReceiver),
			SettledAt:                fromUnix(c.SettledAt),
			PriceBuy:                 toAmt(c.PriceBuy),
			PriceSell:                toAmt(c.PriceSell),
		}
	}
	return a, nil
}

func encodeOrder(o *domain.Order) ([]byte, error) {
	return encMode.Marshal(orderRecord{
		UserID:     o.UserID,
		SellAmount: amt(&o.SellAmount),
		BuyAmount:  amt(&o.BuyAmount),
		Cancelled:  o.Cancelled,
		Claimed:    o.Claimed,
		PlacedAt:   unix(o.PlacedAt),
	})
}

func decodeOrder(auctionID, orderID uint64, b []byte) (domain.Order, error) {
	var r orderRecord
	if err := cbor.Unmarshal(b, &r); err != nil {
		return domain.Order{}, fmt.Errorf("auction: decode order: %w", err)
	}
	return domain.Order{
		AuctionID:  auctionID,
		ID:         orderID,
		UserID:     r.UserID,
		SellAmount: toAmt(r.SellAmount),
		BuyAmount:  toAmt(r.BuyAmount),
		Cancelled:  r.Cancelled,
		Claimed:    r.Claimed,
		PlacedAt:   fromUnix(r.PlacedAt),
	}, nil
}

func encodeCursor(c *domain.Cursor) ([]byte, error) {
	return encMode.Marshal(cursorRecord{
		Visited:              c.Visited,
		LastOrderID:          c.LastOrderID,
		Cumulative:           amt(&c.Cumulative),
		Found:                c.Found,
		Undersubscribed:      c.Undersubscribed,
		MarginalOrderID:      c.MarginalOrderID,
		VolumeBeforeMarginal: amt(&c.VolumeBeforeMarginal),
		PrevOrderID:          c.PrevOrderID,
	})
}

func decodeCursor(b []byte) (domain.Cursor, error) {
	var r cursorRecord
	if err := cbor.Unmarshal(b, &r); err != nil {
		return domain.Cursor{}, fmt.Errorf("auction: decode cursor: %w", err)
	}
	return domain.Cursor{
		Visited:              r.Visited,
		LastOrderID:          r.LastOrderID,
		Cumulative:           toAmt(r.Cumulative),
		Found:                r.Found,
		Undersubscribed:      r.Undersubscribed,
		MarginalOrderID:      r.MarginalOrderID,
		VolumeBeforeMarginal: toAmt(r.VolumeBeforeMarginal),
		PrevOrderID:          r.PrevOrderID,
	}, nil
}

func encodeFees(f domain.FeeParameters) ([]byte, error) {
	return encMode.Marshal(feeRecord{Numerator: f.Numerator, Receiver: f.Receiver.Bytes()})
}

func decodeFees(b []byte) (domain.FeeParameters, error) {
	var r feeRecord
	if err := cbor.Unmarshal(b, &r); err != nil {
		return domain.FeeParameters{}, fmt.Errorf("auction: decode fees: %w", err)
	}
	return domain.FeeParameters{Numerator: r.Numerator, Receiver: common.BytesToAddress(r.Receiver)}, nil
}

func encodeAsset(info domain.AssetInfo) ([]byte, error) {
	return encMode.Marshal(assetRecord{Symbol: info.Symbol, Decimals: info.Decimals})
}

func decodeAsset(addr common.Address, b []byte) (domain.AssetInfo, error) {
	var r assetRecord
	if err := cbor.Unmarshal(b, &r); err != nil {
		return domain.AssetInfo{}, fmt.Errorf("auction: decode asset: %w", err)
	}
	return domain.AssetInfo{Address: addr, Symbol: r.Symbol, Decimals: r.Decimals}, nil
}
