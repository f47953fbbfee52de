package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPrecalcCmd(o *options) *cobra.Command {
	var steps uint64
	cmd := &cobra.Command{
		Use:   "precalc <auction-id>",
		Short: "Run the clearing search to completion, --steps orders per call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := o.client()
			for {
				cur, err := c.Precalculate(cmd.Context(), id, steps)
				if err != nil {
					return err
				}
				fmt.Fprintf(o.out, "visited %d orders, cumulative %s, last order %d\n",
					cur.Visited, cur.Cumulative, cur.LastOrderID)
				if cur.Found {
					if cur.Undersubscribed {
						fmt.Fprintln(o.out, "clearing found: undersubscribed")
					} else {
						fmt.Fprintf(o.out, "clearing found: marginal order %d\n", cur.MarginalOrderID)
					}
					return nil
				}
			}
		},
	}
	cmd.Flags().Uint64Var(&steps, "steps", 500, "orders visited per precalculate call")
	return cmd
}

func newSettleCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "settle <auction-id>",
		Short: "Settle a precalculated auction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			av, err := o.client().Settle(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printAuction(o.out, av)
		},
	}
}

func newClaimCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <auction-id> <order-id>...",
		Short: "Claim proceeds and refunds of your orders",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			res, err := o.client().Claim(cmd.Context(), id, ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(o.out, "selling asset paid: %s\nbidding asset refunded: %s\n", res.SellingPaid, res.BiddingRefunded)
			return nil
		},
	}
}
