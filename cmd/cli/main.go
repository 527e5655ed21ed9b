// Package main is the entry point for the cdr-cost CLI.
package main

import (
	"os"

	"cdr-cost/cmd/cli/cmd"
	"cdr-cost/internal/logging"
)

func main() {
	defer logging.Sync()
	if err := cmd.Execute(); err != nil {
		logging.Sync()
		os.Exit(1)
	}
}
