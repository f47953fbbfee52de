// Package cli implements auctionctl, the operator command line for the
// auction daemon.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/batchauction/internal/client"
)

// options are the global flags shared by every subcommand.
type options struct {
	apiURL string
	token  string
	out    io.Writer
	now    func() time.Time
}

func (o *options) client() *client.Client {
	return client.New(o.apiURL, o.token)
}

// NewRootCmd builds the auctionctl command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	o := &options{out: out, now: time.Now}

	rootCmd := &cobra.Command{
		Use:           "auctionctl",
		Short:         "auctionctl - operate a batch auction daemon",
		Long:          `auctionctl talks to an auctiond HTTP API: it creates auctions, places and cancels orders, drives precalculation and settlement, and claims proceeds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&o.apiURL, "api", envOr("BATCHAUCTION_API", "http://localhost:8080"), "daemon base URL")
	rootCmd.PersistentFlags().StringVar(&o.token, "token", os.Getenv("BATCHAUCTION_TOKEN"), "session token from `auctionctl login`")

	rootCmd.AddCommand(
		newKeyCmd(o),
		newLoginCmd(o),
		newAuctionCmd(o),
		newOrdersCmd(o),
		newPrecalcCmd(o),
		newSettleCmd(o),
		newClaimCmd(o),
		newFeesCmd(o),
		newMintCmd(o),
		newApproveCmd(o),
	)
	return rootCmd
}

// Execute runs auctionctl with os.Args. This is called by main.main().
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseIDs accepts ids as separate arguments or comma separated.
func parseIDs(args []string) ([]uint64, error) {
	var ids []uint64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one order id is required")
	}
	return ids, nil
}

// parseWhen reads an RFC3339 timestamp, or a duration such as "+15m" counted
// from now.
func parseWhen(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(strings.TrimPrefix(s, "+"))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or a duration like +15m", s)
	}
	return now.Add(d), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
