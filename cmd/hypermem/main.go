package main

import (
	"os"

	"github.com/calder-labs/hypermem/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
