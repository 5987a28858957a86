// Command dune-smoke manages a registry of Dune analytics queries and runs
// smoke tests against the Dune API.
package main

import (
	"os"

	"github.com/querylab/dune-smoke/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
