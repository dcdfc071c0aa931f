package cmd

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/logwatch/internal/logging"
	"github.com/bebsworthy/logwatch/internal/query"
)

var queryLines int

// queryCmd groups the terminal versions of the MCP query tools
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read, filter, search or clear a source's log file",
	Long: `Run the same queries the MCP tools answer, from a terminal.

The source argument is optional everywhere; it defaults to the configured
default source.`,
}

var queryTailCmd = &cobra.Command{
	Use:   "tail [source]",
	Short: "Print the last lines of a log file",
	Example: `  logwatch query tail
  logwatch query tail nodejs --lines 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(d *query.Dispatcher) (query.Result, error) {
			return d.Tail(cmd.Context(), optionalArg(args, 0), linesFlag(cmd))
		})
	},
}

var queryErrorsCmd = &cobra.Command{
	Use:   "errors [source]",
	Short: "Print the last lines mentioning error, warn, failed or exception",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(d *query.Dispatcher) (query.Result, error) {
			return d.Errors(cmd.Context(), optionalArg(args, 0), linesFlag(cmd))
		})
	},
}

var querySearchCmd = &cobra.Command{
	Use:   "search <pattern> [source]",
	Short: "Print the most recent lines matching a pattern, case-insensitively",
	Example: `  logwatch query search 'timeout|refused'
  logwatch query search "GET /api" nextjs`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(d *query.Dispatcher) (query.Result, error) {
			return d.Search(cmd.Context(), optionalArg(args, 1), args[0])
		})
	},
}

var queryClearCmd = &cobra.Command{
	Use:   "clear [source]",
	Short: "Truncate a log file in place",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(d *query.Dispatcher) (query.Result, error) {
			return d.Clear(cmd.Context(), optionalArg(args, 0))
		})
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(queryTailCmd, queryErrorsCmd, querySearchCmd, queryClearCmd)

	for _, c := range []*cobra.Command{queryTailCmd, queryErrorsCmd} {
		c.Flags().IntVarP(&queryLines, "lines", "n", 0, "number of lines (default from config)")
	}
}

// runQuery prints the result text; failed queries become a non-zero exit
func runQuery(cmd *cobra.Command, fn func(*query.Dispatcher) (query.Result, error)) error {
	cfg := GetConfig()

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	dispatcher, err := newDispatcher(cfg, logger)
	if err != nil {
		return err
	}

	res, err := fn(dispatcher)
	if err != nil {
		return userError(err)
	}
	if res.IsError() {
		return stderrors.New(res.Text)
	}

	printText(cmd, res.Text)
	return nil
}

// linesFlag returns nil unless --lines was given, so the dispatcher applies
// its own default.
func linesFlag(cmd *cobra.Command) *int {
	if !cmd.Flags().Changed("lines") {
		return nil
	}
	n := queryLines
	return &n
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func printText(cmd *cobra.Command, text string) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(out)
	}
}
