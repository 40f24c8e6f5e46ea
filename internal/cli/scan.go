package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hivefoundry/agentvet/internal/audit"
	"github.com/hivefoundry/agentvet/internal/config"
	"github.com/hivefoundry/agentvet/internal/engine"
	"github.com/hivefoundry/agentvet/internal/report"
	"github.com/hivefoundry/agentvet/internal/risk"
	"github.com/hivefoundry/agentvet/internal/score"
)

// ErrSubmissionRejected is returned when agentvet scan classifies an
// archive as critical risk.
var ErrSubmissionRejected = errors.New("submission rejected")

// scanOutput is the JSON document emitted by agentvet scan --json.
type scanOutput struct {
	Scan  *engine.ScanResult `json:"scan"`
	Score *score.Result      `json:"score,omitempty"`
}

func scanCmd() *cobra.Command {
	var configFile string
	var jsonOut bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scan <archive.zip>",
		Short: "Scan a zip archive submission",
		Long: `Scan a zip archive submission and print the security and platform
integration report.

The exit code is non-zero when the archive is classified critical risk,
so the command can gate CI pipelines.

Examples:
  agentvet scan my-agent.zip
  agentvet scan my-agent.zip --json
  agentvet scan my-agent.zip --config agentvet.yaml --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			var err error

			if configFile != "" {
				cfg, err = config.Load(configFile)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
			} else {
				cfg = config.Defaults()
			}

			logger := audit.NewNop()
			if verbose {
				logger, err = audit.New(cfg.Logging.Format, "stderr", "")
				if err != nil {
					return fmt.Errorf("creating audit logger: %w", err)
				}
			}
			defer logger.Close()

			eng := engine.New(cfg, logger)

			ctx, cancel := signal.NotifyContext(
				context.Background(),
				syscall.SIGINT,
				syscall.SIGTERM,
			)
			defer cancel()

			scan, scored, scanErr := eng.Scan(ctx, args[0])

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(scanOutput{Scan: scan, Score: scored}); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), report.Render(scan, scored))
			}

			if scanErr != nil {
				return scanErr
			}
			if scan.Summary.RiskLevel == risk.LevelCritical {
				return ErrSubmissionRejected
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the full scan result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log scan progress to stderr")

	return cmd
}
