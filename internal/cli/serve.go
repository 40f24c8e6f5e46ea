package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hivefoundry/agentvet/internal/audit"
	"github.com/hivefoundry/agentvet/internal/config"
	"github.com/hivefoundry/agentvet/internal/engine"
	"github.com/hivefoundry/agentvet/internal/metrics"
	"github.com/hivefoundry/agentvet/internal/server"
	"github.com/hivefoundry/agentvet/internal/store"
)

func serveCmd() *cobra.Command {
	var configFile string
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the submission intake server",
		Long: `Start the HTTP server that accepts zip archive uploads, scans them,
and persists the resulting verdicts.

When --config is given, the file is watched and the scanning config is
hot-reloaded on change or on SIGHUP. The listen address and database path
are fixed at startup.

Examples:
  agentvet serve
  agentvet serve --config agentvet.yaml
  agentvet serve --listen 127.0.0.1:9000`,
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

			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = listen
			}

			logger, err := audit.New(cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File)
			if err != nil {
				return fmt.Errorf("creating audit logger: %w", err)
			}
			defer logger.Close()

			ctx, cancel := signal.NotifyContext(
				context.Background(),
				syscall.SIGINT,
				syscall.SIGTERM,
			)
			defer cancel()

			var st *store.Store
			if cfg.Server.DBPath != "" {
				st, err = store.Open(ctx, cfg.Server.DBPath)
				if err != nil {
					return fmt.Errorf("opening verdict store: %w", err)
				}
				defer st.Close() //nolint:errcheck // shutdown path
			}

			m := metrics.New()
			eng := engine.New(cfg, logger)
			srv := server.New(cfg, eng, st, logger, m)
			server.Version = Version

			// Hot reload: swap the scanning config and engine on file change
			// or SIGHUP. Only available when a config file is in use.
			if configFile != "" {
				reloader := config.NewReloader(configFile)
				go func() {
					if err := reloader.Start(ctx); err != nil {
						fmt.Fprintf(os.Stderr, "agentvet: config watcher error: %v\n", err)
					}
				}()
				go func() {
					for newCfg := range reloader.Changes() {
						srv.Reload(newCfg, engine.New(newCfg, logger))
						logger.LogConfigReload("ok", configFile)
					}
				}()
			}

			fmt.Fprintf(os.Stderr, "agentvet v%s starting\n", Version)
			fmt.Fprintf(os.Stderr, "  Listen:  %s\n", cfg.Server.Listen)
			fmt.Fprintf(os.Stderr, "  Submit:  http://%s/api/submissions\n", cfg.Server.Listen)
			fmt.Fprintf(os.Stderr, "  Health:  http://%s/healthz\n", cfg.Server.Listen)
			fmt.Fprintf(os.Stderr, "  Stats:   http://%s/stats\n", cfg.Server.Listen)

			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("server error: %w", err)
			}

			logger.LogShutdown("signal received")
			fmt.Fprintln(os.Stderr, "\nagentvet stopped.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address override")

	return cmd
}
