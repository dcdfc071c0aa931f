package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bebsworthy/logwatch/internal/config"
	"github.com/bebsworthy/logwatch/internal/logging"
	"github.com/bebsworthy/logwatch/internal/metrics"
	"github.com/bebsworthy/logwatch/internal/server"
)

// metricsInterval is how often the metrics summary is logged while serving
const metricsInterval = time.Minute

var (
	// Serve command flags
	transport string
	address   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LogWatch MCP server",
	Long: `Start the LogWatch MCP server which provides:
- get_logs, get_errors and search_logs over each source's log file
- clear_logs to truncate a log file in place
- setup_capture and list_sources to get sources running

By default the MCP interface is served over stdio, so an MCP client can launch
logwatch directly. Use --transport sse to serve it over HTTP instead.`,
	Example: `  # Serve over stdio (what MCP clients expect)
  logwatch serve

  # Serve over server-sent events
  logwatch serve --transport sse --address localhost:8766

  # Start with verbose logging
  logwatch serve --verbose`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Serve-specific flags (these will override config file values)
	serveCmd.Flags().StringVar(&transport, "transport", "", "MCP transport: stdio or sse (overrides config)")
	serveCmd.Flags().StringVar(&address, "address", "", "Listen address for the sse transport (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if transport != "" {
		cfg.Server.Transport = transport
	}
	if address != "" {
		cfg.Server.Address = address
	}
	if cfg.Server.Transport != config.TransportStdio && cfg.Server.Transport != config.TransportSSE {
		return fmt.Errorf("invalid transport: %s (must be stdio or sse)", cfg.Server.Transport)
	}

	logger, err := logging.NewServerLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	dispatcher, err := newDispatcher(cfg, logger)
	if err != nil {
		return err
	}

	monitor := metrics.NewMonitor()
	monitor.SetLogger(logger.Logger)

	mcpServer := server.NewMCPServer(dispatcher, logger, monitor, server.OptionsFromConfig(cfg, Version))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// stdio ends when the client closes stdin; take the rest down with it
		defer stop()
		return mcpServer.Serve(gctx)
	})

	if cfg.Development.MetricsEnabled {
		g.Go(func() error {
			ticker := time.NewTicker(metricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					monitor.LogMetricsSummary(gctx)
				}
			}
		})
	}

	err = g.Wait()

	if cfg.Development.MetricsEnabled {
		monitor.LogMetricsSummary(cmd.Context())
	}
	logger.Info("LogWatch server stopped")

	return err
}
