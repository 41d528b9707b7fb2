// Command recsync exports live records to YAML files and imports them back.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/recsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Command failures were already reported by the formatter.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
