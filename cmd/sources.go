package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bebsworthy/logwatch/internal/logging"
)

// sourcesCmd lists the configured sources and their log file status
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List log sources and whether their log files exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		dispatcher, err := newDispatcher(cfg, logging.Discard())
		if err != nil {
			return err
		}

		printText(cmd, dispatcher.ListSources(cmd.Context()))
		return nil
	},
}

var sourcesSetupCmd = &cobra.Command{
	Use:     "setup <source>",
	Short:   "Show the command that captures a source's logs",
	Example: `  logwatch sources setup nextjs`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		dispatcher, err := newDispatcher(cfg, logging.Discard())
		if err != nil {
			return err
		}

		text, err := dispatcher.Registry().RenderCaptureInstructions(args[0])
		if err != nil {
			return userError(err)
		}

		printText(cmd, text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesSetupCmd)
}
