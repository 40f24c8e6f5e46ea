// Package cli implements the agentvet command-line interface using cobra.
package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, set at build time via ldflags.
var (
	Version   = "0.1.0-dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// Execute runs the root command.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentvet",
		Short: "Static security vetting for agent submissions",
		Long: `Agentvet statically analyzes zip archive submissions before they reach
the platform: it scans code for dangerous patterns, classifies the
submission's risk level, and scores its platform integration readiness.

Quick start:
  agentvet scan my-agent.zip
  agentvet scan my-agent.zip --json
  agentvet serve --config agentvet.yaml
  agentvet check --config agentvet.yaml`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		scanCmd(),
		serveCmd(),
		checkCmd(),
		versionCmd(),
	)

	return cmd
}
