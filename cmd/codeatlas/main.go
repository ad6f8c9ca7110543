// Package main provides the entry point for the codeatlas CLI.
package main

import (
	"os"

	"github.com/codeatlas-ai/codeatlas/cmd/codeatlas/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
