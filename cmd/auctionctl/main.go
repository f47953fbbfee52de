// Command auctionctl is the operator command line for auctiond.
package main

import "github.com/alanyoungcy/batchauction/internal/cli"

func main() {
	cli.Execute()
}
