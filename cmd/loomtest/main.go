// Package main provides the entry point for the loomtest CLI.
package main

import (
	"os"

	"github.com/loom-data/loomtest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
