// Command shapeql inspects entity layouts, validates documents and
// compiles filters.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/shapeql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
