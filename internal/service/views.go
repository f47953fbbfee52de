package service

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/batchauction/internal/auction"
	"github.com/alanyoungcy/batchauction/internal/domain"
)

// priceScale is the number of decimal places kept in rendered prices.
const priceScale = 18

// AssetView is the JSON form of an asset.
type AssetView struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AuctionView is the JSON form of an auction, its phase and clearing record.
// Amounts are base-unit integers rendered as decimal strings; prices are in
// whole selling-asset units per whole bidding-asset unit.
type AuctionView struct {
	ID                   uint64        `json:"id"`
	AuctioneerID         uint64        `json:"auctioneerId"`
	SellingAsset         AssetView     `json:"sellingAsset"`
	BiddingAsset         AssetView     `json:"biddingAsset"`
	OrderPlacementStart  time.Time     `json:"orderPlacementStart"`
	CancellationEnd      time.Time     `json:"cancellationEnd"`
	AuctionEnd           time.Time     `json:"auctionEnd"`
	SellAmount           string        `json:"sellAmount"`
	MinBuyAmount         string        `json:"minBuyAmount"`
	MinBidPerOrder       string        `json:"minBidPerOrder"`
	MinFundingThreshold  string        `json:"minFundingThreshold"`
	AtomicClosureAllowed bool          `json:"atomicClosureAllowed"`
	FeeNumerator         uint64        `json:"feeNumerator"`
	FeePolicy            string        `json:"feePolicy"`
	OrderCount           uint64        `json:"orderCount"`
	TotalSellVolume      string        `json:"totalSellVolume"`
	ReservePrice         string        `json:"reservePrice"`
	Phase                domain.Phase  `json:"phase"`
	Clearing             *ClearingView `json:"clearing,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
}

// ClearingView is the JSON form of a settled auction's clearing record.
type ClearingView struct {
	ClearingSellAmount       string    `json:"clearingSellAmount"`
	ClearingBuyAmount        string    `json:"clearingBuyAmount"`
	ClearingOrderID          uint64    `json:"clearingOrderId"`
	BidVolumeAtClearingPrice string    `json:"bidVolumeAtClearingPrice"`
	ClearingOrderPayout      string    `json:"clearingOrderPayout"`
	Price                    string    `json:"price"`
	FundingFailed            bool      `json:"fundingFailed"`
	Fee                      string    `json:"fee"`
	FeeReceiver              string    `json:"feeReceiver"`
	SettledAt                time.Time `json:"settledAt"`
}

// OrderView is the JSON form of an order.
type OrderView struct {
	AuctionID  uint64    `json:"auctionId"`
	ID         uint64    `json:"id"`
	UserID     uint64    `json:"userId"`
	SellAmount string    `json:"sellAmount"`
	BuyAmount  string    `json:"buyAmount"`
	LimitPrice string    `json:"limitPrice"`
	Cancelled  bool      `json:"cancelled"`
	Claimed    bool      `json:"claimed"`
	PlacedAt   time.Time `json:"placedAt"`
}

// CursorView is the JSON form of the clearing scan checkpoint.
type CursorView struct {
	Visited              uint64 `json:"visited"`
	LastOrderID          uint64 `json:"lastOrderId"`
	Cumulative           string `json:"cumulative"`
	Found                bool   `json:"found"`
	Undersubscribed      bool   `json:"undersubscribed"`
	MarginalOrderID      uint64 `json:"marginalOrderId"`
	VolumeBeforeMarginal string `json:"volumeBeforeMarginal"`
	PrevOrderID          uint64 `json:"prevOrderId"`
}

// ClaimView totals one claim call.
type ClaimView struct {
	SellingPaid     string `json:"sellingPaid"`
	BiddingRefunded string `json:"biddingRefunded"`
}

// FeeView is the JSON form of the fee parameters.
type FeeView struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
	Receiver    string `json:"receiver"`
	Percent     string `json:"percent"`
}

// UserView is the JSON form of a registered user.
type UserView struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
}

// BalanceView is one holder's balance of an asset.
type BalanceView struct {
	Asset   AssetView `json:"asset"`
	Holder  string    `json:"holder"`
	Amount  string    `json:"amount"`
	Decimal string    `json:"decimal"`
}

// EventView is the JSON form of a journaled event, also used as the pub/sub
// payload.
type EventView struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	AuctionID uint64         `json:"auctionId"`
	OrderID   uint64         `json:"orderId,omitempty"`
	UserID    uint64         `json:"userId,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuctionSnapshot is an auction with every one of its orders.
type AuctionSnapshot struct {
	Auction AuctionView `json:"auction"`
	Orders  []OrderView `json:"orders"`
}

func newAssetView(info domain.AssetInfo) AssetView {
	return AssetView{Address: info.Address.Hex(), Symbol: info.Symbol, Decimals: info.Decimals}
}

// toDecimal scales a base-unit amount into whole units.
func toDecimal(v *uint256.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals))
}

// price renders num/den in whole units, or "" when den is zero.
func price(num *uint256.Int, numDecimals uint8, den *uint256.Int, denDecimals uint8) string {
	if den.IsZero() {
		return ""
	}
	d := toDecimal(den, denDecimals)
	return toDecimal(num, numDecimals).DivRound(d, priceScale).String()
}

func newAuctionView(a *domain.Auction, selling, bidding domain.AssetInfo, phase domain.Phase) AuctionView {
	v := AuctionView{
		ID:                   a.ID,
		AuctioneerID:         a.AuctioneerID,
		SellingAsset:         newAssetView(selling),
		BiddingAsset:         newAssetView(bidding),
		OrderPlacementStart:  a.OrderPlacementStart,
		CancellationEnd:      a.CancellationEnd,
		AuctionEnd:           a.AuctionEnd,
		SellAmount:           a.SellAmount.Dec(),
		MinBuyAmount:         a.MinBuyAmount.Dec(),
		MinBidPerOrder:       a.MinBidPerOrder.Dec(),
		MinFundingThreshold:  a.MinFundingThreshold.Dec(),
		AtomicClosureAllowed: a.AtomicClosureAllowed,
		FeeNumerator:         a.FeeNumerator,
		FeePolicy:            string(a.FeePolicy),
		OrderCount:           a.OrderCount,
		TotalSellVolume:      a.TotalSellVolume.Dec(),
		ReservePrice:         price(&a.MinBuyAmount, selling.Decimals, &a.SellAmount, bidding.Decimals),
		Phase:                phase,
		CreatedAt:            a.CreatedAt,
	}
	if c := a.Clearing; c != nil {
		v.Clearing = &ClearingView{
			ClearingSellAmount:       c.ClearingSellAmount.Dec(),
			ClearingBuyAmount:        c.ClearingBuyAmount.Dec(),
			ClearingOrderID:          c.ClearingOrderID,
			BidVolumeAtClearingPrice: c.BidVolumeAtClearingPrice.Dec(),
			ClearingOrderPayout:      c.ClearingOrderPayout.Dec(),
			Price:                    price(&c.PriceBuy, selling.Decimals, &c.PriceSell, bidding.Decimals),
			FundingFailed:            a.FundingFailed,
			Fee:                      c.Fee.Dec(),
			FeeReceiver:              c.FeeReceiver.Hex(),
			SettledAt:                c.SettledAt,
		}
	}
	return v
}

func newOrderView(o *domain.Order, selling, bidding domain.AssetInfo) OrderView {
	return OrderView{
		AuctionID:  o.AuctionID,
		ID:         o.ID,
		UserID:     o.UserID,
		SellAmount: o.SellAmount.Dec(),
		BuyAmount:  o.BuyAmount.Dec(),
		LimitPrice: price(&o.BuyAmount, selling.Decimals, &o.SellAmount, bidding.Decimals),
		Cancelled:  o.Cancelled,
		Claimed:    o.Claimed,
		PlacedAt:   o.PlacedAt,
	}
}

func newCursorView(c *domain.Cursor) CursorView {
	return CursorView{
		Visited:              c.Visited,
		LastOrderID:          c.LastOrderID,
		Cumulative:           c.Cumulative.Dec(),
		Found:                c.Found,
		Undersubscribed:      c.Undersubscribed,
		MarginalOrderID:      c.MarginalOrderID,
		VolumeBeforeMarginal: c.VolumeBeforeMarginal.Dec(),
		PrevOrderID:          c.PrevOrderID,
	}
}

func newFeeView(f domain.FeeParameters) FeeView {
	pct := decimal.NewFromInt(int64(f.Numerator)).Div(decimal.NewFromInt(domain.FeeDenominator / 100))
	return FeeView{
		Numerator:   f.Numerator,
		Denominator: domain.FeeDenominator,
		Receiver:    f.Receiver.Hex(),
		Percent:     pct.String(),
	}
}

func newBalanceView(b auction.Balance) BalanceView {
	return BalanceView{
		Asset:   newAssetView(b.Asset),
		Holder:  b.Holder.Hex(),
		Amount:  b.Amount.Dec(),
		Decimal: toDecimal(&b.Amount, b.Asset.Decimals).String(),
	}
}

// NewEventView converts a journaled event to its JSON form.
func NewEventView(e domain.Event) EventView {
	return EventView{
		ID:        e.ID,
		Kind:      string(e.Kind),
		AuctionID: e.AuctionID,
		OrderID:   e.OrderID,
		UserID:    e.UserID,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}
