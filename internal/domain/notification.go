package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NotificationKind names an outbound notification.
type NotificationKind string

const (
	NotifyAuctionCreated       NotificationKind = "auction.created"
	NotifyOrderCreated         NotificationKind = "order.created"
	NotifyOrderCancelled       NotificationKind = "order.cancelled"
	NotifyClearingFound        NotificationKind = "clearing.found"
	NotifyAuctionCleared       NotificationKind = "auction.cleared"
	NotifyFundingFailed        NotificationKind = "auction.funding_failed"
	NotifyOrderClaimed         NotificationKind = "order.claimed"
	NotifyFeeParametersUpdated NotificationKind = "fees.updated"
	NotifyUserRegistered       NotificationKind = "user.registered"
)

// Notification is returned by the engine alongside each committed state
// change. Which amount fields are set depends on Kind:
//
//	auction.created         SellAmount, BuyAmount (min buy amount)
//	order.created           SellAmount, BuyAmount
//	order.cancelled         Refund
//	clearing.found          SellAmount (cumulative volume), OrderID (marginal)
//	auction.cleared         SellAmount, BuyAmount (clearing amounts), OrderID, Fee
//	auction.funding_failed  SellAmount (volume raised)
//	order.claimed           Payout (selling asset), Refund (bidding asset)
//	fees.updated            FeeNumerator, Address (receiver)
//	user.registered         UserID, Address
type Notification struct {
	Kind         NotificationKind
	AuctionID    uint64
	OrderID      uint64
	UserID       uint64
	Address      common.Address
	SellAmount   uint256.Int
	BuyAmount    uint256.Int
	Payout       uint256.Int
	Refund       uint256.Int
	Fee          uint256.Int
	FeeNumerator uint64
}

// Detail flattens the amount fields into a string map suitable for JSON
// journals and pub/sub payloads.
func (n Notification) Detail() map[string]any {
	d := map[string]any{}
	put := func(k string, v *uint256.Int) {
		if !v.IsZero() {
			d[k] = v.Dec()
		}
	}
	put("sell_amount", &n.SellAmount)
	put("buy_amount", &n.BuyAmount)
	put("payout", &n.Payout)
	put("refund", &n.Refund)
	put("fee", &n.Fee)
	if n.Address != (common.Address{}) {
		d["address"] = n.Address.Hex()
	}
	if n.FeeNumerator != 0 {
		d["fee_numerator"] = n.FeeNumerator
	}
	return d
}
