package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOrdersCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Place, cancel and list orders",
	}

	var buys, sells string
	place := &cobra.Command{
		Use:   "place <auction-id>",
		Short: "Place orders; --buy and --sell are matching comma separated lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, s := splitList(buys), splitList(sells)
			if len(b) != len(s) {
				return fmt.Errorf("--buy has %d amounts but --sell has %d", len(b), len(s))
			}
			ids, err := o.client().PlaceOrders(cmd.Context(), id, b, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(o.out, "placed orders %v in auction %d\n", ids, id)
			return nil
		},
	}
	place.Flags().StringVar(&buys, "buy", "", "minimum selling asset wanted per order")
	place.Flags().StringVar(&sells, "sell", "", "bidding asset offered per order")
	_ = place.MarkFlagRequired("buy")
	_ = place.MarkFlagRequired("sell")

	cancel := &cobra.Command{
		Use:   "cancel <auction-id> <order-id>...",
		Short: "Cancel your orders before the cancellation deadline",
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
			if err := o.client().CancelOrders(cmd.Context(), id, ids); err != nil {
				return err
			}
			fmt.Fprintf(o.out, "cancelled orders %v in auction %d\n", ids, id)
			return nil
		},
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list <auction-id>",
		Short: "List an auction's orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			orders, err := o.client().Orders(cmd.Context(), id, limit, offset)
			if err != nil {
				return err
			}
			return printOrders(o.out, orders)
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "page offset")

	cmd.AddCommand(place, cancel, list)
	return cmd
}
