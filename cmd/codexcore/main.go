// Package main provides the entry point for the codexcore CLI.
package main

import (
	"os"

	"github.com/codexlab/codexcore/cmd/codexcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
