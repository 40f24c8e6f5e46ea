// Package main is the entry point for the agentvet CLI.
package main

import (
	"fmt"
	"os"

	"github.com/hivefoundry/agentvet/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
