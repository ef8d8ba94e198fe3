// Command rdtbench compares Go-Back-N, Selective Repeat, and TCP-like
// reliable data transfer over a simulated lossy link.
package main

import (
	"os"

	"github.com/joepengzhou/rdt/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
