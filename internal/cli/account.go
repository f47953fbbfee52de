package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFeesCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Show or change the protocol fee",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the current fee parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fees, err := o.client().Fees(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(o.out, "fee: %d/%d (%s%%)\nreceiver: %s\n", fees.Numerator, fees.Denominator, fees.Percent, fees.Receiver)
			return nil
		},
	}

	var numerator uint64
	var receiver string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the fee for auctions created from now on (owner only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fees, err := o.client().SetFees(cmd.Context(), numerator, receiver)
			if err != nil {
				return err
			}
			fmt.Fprintf(o.out, "fee set to %d/%d (%s%%), receiver %s\n", fees.Numerator, fees.Denominator, fees.Percent, fees.Receiver)
			return nil
		},
	}
	set.Flags().Uint64Var(&numerator, "numerator", 0, "fee numerator over 1000, at most 15")
	set.Flags().StringVar(&receiver, "receiver", "", "fee receiver address")
	_ = set.MarkFlagRequired("numerator")

	cmd.AddCommand(show, set)
	return cmd
}

func newMintCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mint <asset> <to> <amount>",
		Short: "Credit an asset balance (owner only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bal, err := o.client().Mint(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(o.out, "%s balance of %s: %s (%s)\n", bal.Asset.Symbol, bal.Holder, bal.Amount, bal.Decimal)
			return nil
		},
	}
}

func newApproveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <asset> <amount>",
		Short: "Let the escrow pull up to amount of an asset from you",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.client().Approve(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(o.out, "approved %s of %s\n", args[1], args[0])
			return nil
		},
	}
}
