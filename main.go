// aibridge relays chat messages to an AI endpoint.
//
// Entry point: initializes the Cobra root command and launches
// the Bubble Tea TUI by default (no subcommand required).
package main

import (
	"fmt"
	"os"

	"github.com/DachengChen/aibridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
