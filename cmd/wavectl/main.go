// Command wavectl is the command-line client for the Wavefront daemon.
package main

import (
	"fmt"
	"os"

	"github.com/example/wavefront/cmd/wavectl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
