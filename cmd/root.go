package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/logwatch/internal/config"
	"github.com/bebsworthy/logwatch/internal/errors"
	"github.com/bebsworthy/logwatch/internal/logging"
	"github.com/bebsworthy/logwatch/internal/query"
	"github.com/bebsworthy/logwatch/internal/sources"
)

var (
	// Global flags
	configFile string
	verbose    bool

	// Global configuration
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "logwatch",
	Short: "LogWatch - MCP server exposing development server logs",
	Long: `LogWatch is a Model Context Protocol (MCP) server that lets an AI agent read,
filter, search and clear the log files of local development servers.

Each source (expo, nodejs, nextjs, or any configured one) is a log file produced
by a capture command such as "script -q /tmp/expo.log npx expo start". LogWatch
never starts servers from the MCP side; it only takes snapshots of those files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $LOGWATCH_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configPath := configFile
	if configPath == "" {
		// Otherwise let config package handle auto-discovery
		configPath = os.Getenv("LOGWATCH_CONFIG")
	}

	var err error
	appConfig, err = config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		appConfig.Logging.Verbose = true
		appConfig.Logging.Level = "debug"
	}

	// stdout carries the MCP stream, so diagnostics go to stderr
	if appConfig.Logging.Verbose {
		if configPath != "" {
			fmt.Fprintf(os.Stderr, "Loaded configuration from: %s\n", configPath)
		} else {
			fmt.Fprintf(os.Stderr, "Using default configuration\n")
		}

		if appConfig.Development.DebugMode {
			fmt.Fprintf(os.Stderr, "Debug mode enabled\n")
		}
	}
}

// GetConfig returns the global configuration
// This should be called after cobra initialization
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// newDispatcher builds the source registry and query dispatcher from cfg
func newDispatcher(cfg *config.Config, logger *logging.Logger) (*query.Dispatcher, error) {
	registry, err := sources.FromConfig(cfg.DefaultSource, cfg.Sources)
	if err != nil {
		return nil, err
	}
	return query.FromConfig(cfg, registry, logger.Logger)
}

// userError strips the type and code prefix from validation errors so the
// terminal shows the same text an MCP client would.
func userError(err error) error {
	if errors.IsType(err, errors.ErrorTypeValidation) {
		return stderrors.New(errors.ClassifyError(err).Message)
	}
	return err
}
