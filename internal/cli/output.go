package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alanyoungcy/batchauction/internal/service"
)

func printAuctions(w io.Writer, auctions []service.AuctionView) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Selling", "Bidding", "Sell", "Reserve", "Orders", "Phase", "Ends", "Price")
	for _, a := range auctions {
		price := "-"
		if a.Clearing != nil {
			price = a.Clearing.Price
		}
		if err := table.Append(
			strconv.FormatUint(a.ID, 10),
			a.SellingAsset.Symbol,
			a.BiddingAsset.Symbol,
			a.SellAmount,
			a.ReservePrice,
			strconv.FormatUint(a.OrderCount, 10),
			string(a.Phase),
			a.AuctionEnd.Format(time.RFC3339),
			price,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func printAuction(w io.Writer, a service.AuctionView) error {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	rows := [][]string{
		{"id", strconv.FormatUint(a.ID, 10)},
		{"auctioneer", strconv.FormatUint(a.AuctioneerID, 10)},
		{"selling", fmt.Sprintf("%s (%s)", a.SellingAsset.Symbol, a.SellingAsset.Address)},
		{"bidding", fmt.Sprintf("%s (%s)", a.BiddingAsset.Symbol, a.BiddingAsset.Address)},
		{"phase", string(a.Phase)},
		{"order placement", a.OrderPlacementStart.Format(time.RFC3339)},
		{"cancellation end", a.CancellationEnd.Format(time.RFC3339)},
		{"auction end", a.AuctionEnd.Format(time.RFC3339)},
		{"sell amount", a.SellAmount},
		{"min buy amount", a.MinBuyAmount},
		{"reserve price", a.ReservePrice},
		{"min bid per order", a.MinBidPerOrder},
		{"min funding", a.MinFundingThreshold},
		{"atomic closure", strconv.FormatBool(a.AtomicClosureAllowed)},
		{"fee", fmt.Sprintf("%d/1000 (%s)", a.FeeNumerator, a.FeePolicy)},
		{"orders", strconv.FormatUint(a.OrderCount, 10)},
		{"sell volume", a.TotalSellVolume},
	}
	if c := a.Clearing; c != nil {
		rows = append(rows,
			[]string{"clearing price", c.Price},
			[]string{"clearing sell amount", c.ClearingSellAmount},
			[]string{"clearing buy amount", c.ClearingBuyAmount},
			[]string{"clearing order", strconv.FormatUint(c.ClearingOrderID, 10)},
			[]string{"clearing order payout", c.ClearingOrderPayout},
			[]string{"funding failed", strconv.FormatBool(c.FundingFailed)},
			[]string{"fee paid", c.Fee},
		)
	}
	for _, r := range rows {
		if err := table.Append(r[0], r[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

func printOrders(w io.Writer, orders []service.OrderView) error {
	table := tablewriter.NewWriter(w)
	table.Header("Order", "User", "Sell", "Buy", "Limit", "Cancelled", "Claimed")
	for _, o := range orders {
		if err := table.Append(
			strconv.FormatUint(o.ID, 10),
			strconv.FormatUint(o.UserID, 10),
			o.SellAmount,
			o.BuyAmount,
			o.LimitPrice,
			strconv.FormatBool(o.Cancelled),
			strconv.FormatBool(o.Claimed),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
