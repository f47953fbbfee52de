package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/batchauction/internal/client"
)

func newAuctionCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auction",
		Short: "Create and inspect auctions",
	}

	var req client.CreateAuction
	var start, cancelEnd, end string
	create := &cobra.Command{
		Use:   "create",
		Short: "Initiate an auction, escrowing the sell amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := o.now()
			var err error
			if req.OrderPlacementStart, err = parseWhen(start, now); err != nil {
				return err
			}
			if req.CancellationEnd, err = parseWhen(cancelEnd, now); err != nil {
				return err
			}
			if req.AuctionEnd, err = parseWhen(end, now); err != nil {
				return err
			}
			av, err := o.client().CreateAuction(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printAuction(o.out, av)
		},
	}
	f := create.Flags()
	f.StringVar(&req.SellingAsset, "selling", "", "selling asset address")
	f.StringVar(&req.BiddingAsset, "bidding", "", "bidding asset address")
	f.StringVar(&req.SellAmount, "sell", "", "selling asset amount in base units")
	f.StringVar(&req.MinBuyAmount, "min-buy", "", "minimum bidding asset to raise in base units")
	f.StringVar(&req.MinBidPerOrder, "min-bid", "1", "minimum sell amount per order")
	f.StringVar(&req.MinFundingThreshold, "min-funding", "", "cumulative sell volume below which the auction fails")
	f.BoolVar(&req.AtomicClosureAllowed, "atomic", false, "allow atomic closure orders")
	f.StringVar(&start, "start", "+1m", "order placement start (RFC3339 or +duration)")
	f.StringVar(&cancelEnd, "cancel-end", "+1h", "cancellation end (RFC3339 or +duration)")
	f.StringVar(&end, "end", "+2h", "auction end (RFC3339 or +duration)")
	for _, name := range []string{"selling", "bidding", "sell", "min-buy"} {
		_ = create.MarkFlagRequired(name)
	}

	show := &cobra.Command{
		Use:   "show <auction-id>",
		Short: "Show one auction with its phase and clearing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			av, err := o.client().Auction(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printAuction(o.out, av)
		},
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List auctions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			auctions, err := o.client().Auctions(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if len(auctions) == 0 {
				fmt.Fprintln(o.out, "no auctions")
				return nil
			}
			return printAuctions(o.out, auctions)
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "page offset")

	cmd.AddCommand(create, show, list)
	return cmd
}
