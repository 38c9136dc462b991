// Package main is the entry point for the bridgeclaw CLI.
package main

import (
	"os"

	"github.com/BridgeClaw/BridgeClaw/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
