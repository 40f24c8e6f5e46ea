package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hivefoundry/agentvet/internal/config"
)

func checkCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a config file",
		Long: `Validate an agentvet config file and print a summary of the active
scanning and scoring settings.

Examples:
  agentvet check --config agentvet.yaml
  agentvet check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			if configFile != "" {
				var err error
				cfg, err = config.Load(configFile)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Config validation FAILED: %v\n", err)
					return err
				}
				cmd.Println("Config validation: OK")
			} else {
				cfg = config.Defaults()
				cmd.Println("Using default config (no --config specified)")
			}

			patterns := 0
			for _, cat := range cfg.Security.Categories {
				patterns += len(cat.Patterns)
			}

			cmd.Printf("  Listen:             %s\n", cfg.Server.Listen)
			cmd.Printf("  Max entries:        %d\n", cfg.Limits.MaxEntries)
			cmd.Printf("  Max file size:      %d MB\n", cfg.Limits.MaxFileMB)
			cmd.Printf("  Max upload size:    %d MB\n", cfg.Server.MaxUploadMB)
			cmd.Printf("  Pattern categories: %d (%d patterns)\n", len(cfg.Security.Categories), patterns)
			cmd.Printf("  Endpoint literals:  %d\n", len(cfg.Scoring.Endpoints))
			cmd.Printf("  HTTP libraries:     %d families\n", len(cfg.Scoring.HTTPLibraries))
			cmd.Printf("  Axis weights:       %d total\n", cfg.Scoring.Weights.Total())

			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path to validate")

	return cmd
}
