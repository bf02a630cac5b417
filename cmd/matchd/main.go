// Command matchd is the entry point for the merchant matchmaking service.
// It provides a CLI interface (via Cobra) for one-shot message processing,
// dataset indexing, and an HTTP server for production use.
package main

import (
	"fmt"
	"os"

	"github.com/merchantnet/matchd-go/cmd/matchd/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
