package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bebsworthy/logwatch/internal/config"
)

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect LogWatch configuration",
}

var configExampleCmd = &cobra.Command{
	Use:     "example",
	Short:   "Print an example configuration file",
	Example: `  logwatch config example > ~/.logwatch/config.yaml`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeYAML(cmd, config.ExampleConfig())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeYAML(cmd, GetConfig())
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the locations searched for a configuration file",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, p := range config.GetConfigPaths() {
			fmt.Fprintln(out, p)
		}
		fmt.Fprintf(out, "\nEnvironment overrides use the LOGWATCH_ prefix, for example %s\n", config.GetEnvVarName("query.backend"))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configExampleCmd, configShowCmd, configPathsCmd)
}

func writeYAML(cmd *cobra.Command, cfg *config.Config) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	return enc.Close()
}
