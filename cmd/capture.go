package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bebsworthy/logwatch/internal/logging"
	"github.com/bebsworthy/logwatch/internal/runner"
	"github.com/bebsworthy/logwatch/internal/sources"
)

var (
	// Capture command flags
	captureRestart bool
	captureQuiet   bool
)

// captureCmd runs a capture command for a source
var captureCmd = &cobra.Command{
	Use:   "capture <source> [-- command...]",
	Short: "Run a development server and capture its output to the source's log file",
	Long: `Run a development server so that its output ends up in the source's log file.

Without an explicit command the source's registered capture command runs
through the configured shell; it writes the log file itself (usually with
"script -q"). With an explicit command after --, its combined stdout and
stderr are appended to the log file by logwatch.

Output is echoed to the terminal unless --quiet is given. With --restart a
failing command is restarted with exponential backoff, up to
capture.max_restarts times.`,
	Example: `  # Run the registered command for expo
  logwatch capture expo

  # Run an explicit command and append its output to the nodejs log file
  logwatch capture nodejs --restart -- npm run dev`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("source is required")
		}
		if dash := cmd.ArgsLenAtDash(); dash > 1 || (dash == -1 && len(args) > 1) {
			return fmt.Errorf("the command must follow the -- separator")
		}
		return nil
	},
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().BoolVar(&captureRestart, "restart", false, "restart the command when it fails")
	captureCmd.Flags().BoolVarP(&captureQuiet, "quiet", "q", false, "do not echo output to the terminal")
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	registry, err := sources.FromConfig(cfg.DefaultSource, cfg.Sources)
	if err != nil {
		return err
	}

	id, err := registry.Resolve(args[0])
	if err != nil {
		return userError(err)
	}
	desc, _ := registry.Lookup(id)

	logger, err := logging.NewCaptureLogger(cfg.Logging, id.String())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	runnerCfg := runner.ConfigFromCapture(cfg.Capture)
	runnerCfg.Restart = captureRestart
	runnerCfg.Stdin = os.Stdin
	if !captureQuiet {
		runnerCfg.Echo = cmd.OutOrStdout()
	}

	r, err := runner.NewCaptureRunner(desc, afero.NewOsFs(), logger, runnerCfg, args[1:])
	if err != nil {
		return userError(err)
	}

	if verbose || cfg.Logging.Verbose {
		fmt.Fprintf(os.Stderr, "Capturing %s to %s\n", id, desc.File)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return r.Run(ctx)
}
