// Command stateloop runs the catalogue program and inspects its event log.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/stateloop/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
