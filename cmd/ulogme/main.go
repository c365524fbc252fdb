// Command ulogme records desktop activity and serves the daily exports.
package main

import (
	"fmt"
	"os"

	"github.com/runnerr0/ulogme/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
