// Package config provides configuration management for LogWatch.
//
// This package handles loading configuration from multiple sources:
// - Configuration files (YAML, JSON, TOML)
// - Environment variables
// - Command line flags
// - Default values
//
// Configuration is loaded in order of precedence (highest to lowest):
// 1. Command line flags
// 2. Environment variables
// 3. Configuration file
// 4. Default values
//
// The source registry is part of the configuration: it is read once at
// startup and never changes while the server runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete LogWatch configuration
type Config struct {
	Server        ServerConfig      `mapstructure:"server" yaml:"server"`
	Query         QueryConfig       `mapstructure:"query" yaml:"query"`
	DefaultSource string            `mapstructure:"default_source" yaml:"default_source"`
	Sources       []SourceConfig    `mapstructure:"sources" yaml:"sources"`
	Capture       CaptureConfig     `mapstructure:"capture" yaml:"capture"`
	Logging       LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Development   DevelopmentConfig `mapstructure:"development" yaml:"development"`
}

// ServerConfig contains MCP server configuration
type ServerConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Transport string `mapstructure:"transport" yaml:"transport"`
	Address   string `mapstructure:"address" yaml:"address"`
}

// QueryConfig controls how log artifacts are read and filtered
type QueryConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	TailLines     int           `mapstructure:"tail_lines" yaml:"tail_lines"`
	ErrorLines    int           `mapstructure:"error_lines" yaml:"error_lines"`
	SearchLimit   int           `mapstructure:"search_limit" yaml:"search_limit"`
	ErrorKeywords []string      `mapstructure:"error_keywords" yaml:"error_keywords"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SourceConfig describes one log source and how its artifact is produced
type SourceConfig struct {
	Name                string   `mapstructure:"name" yaml:"name"`
	File                string   `mapstructure:"file" yaml:"file"`
	Description         string   `mapstructure:"description" yaml:"description"`
	CaptureCommand      string   `mapstructure:"capture_command" yaml:"capture_command"`
	AlternativeCommands []string `mapstructure:"alternative_commands" yaml:"alternative_commands,omitempty"`
}

// CaptureConfig contains settings for the capture runner
type CaptureConfig struct {
	Shell               string        `mapstructure:"shell" yaml:"shell"`
	MaxRestarts         int           `mapstructure:"max_restarts" yaml:"max_restarts"`
	RestartInitialDelay time.Duration `mapstructure:"restart_initial_delay" yaml:"restart_initial_delay"`
	RestartMaxDelay     time.Duration `mapstructure:"restart_max_delay" yaml:"restart_max_delay"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	OutputFile string `mapstructure:"output_file" yaml:"output_file"`
	Verbose    bool   `mapstructure:"verbose" yaml:"verbose"`
}

// DevelopmentConfig contains development and debugging options
type DevelopmentConfig struct {
	DebugMode      bool `mapstructure:"debug_mode" yaml:"debug_mode"`
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
}

// Query backends
const (
	BackendNative = "native"
	BackendExec   = "exec"
)

// MCP transports
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

var sourceNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// DefaultSources returns the built-in source registry
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:           "expo",
			File:           "/tmp/expo.log",
			Description:    "Expo/React Native development server",
			CaptureCommand: "script -q /tmp/expo.log npx expo start -c --go",
		},
		{
			Name:                "nodejs",
			File:                "/tmp/node.log",
			Description:         "Node.js application",
			CaptureCommand:      "script -q /tmp/node.log npm start",
			AlternativeCommands: []string{"script -q /tmp/node.log npm run dev"},
		},
		{
			Name:           "nextjs",
			File:           "/tmp/nextjs.log",
			Description:    "Next.js development server",
			CaptureCommand: "script -q /tmp/nextjs.log npm run dev",
		},
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      "log-watcher",
			Transport: TransportStdio,
			Address:   "localhost:8766",
		},
		Query: QueryConfig{
			Backend:       BackendNative,
			TailLines:     100,
			ErrorLines:    50,
			SearchLimit:   30,
			ErrorKeywords: []string{"error", "warn", "failed", "exception"},
			Timeout:       0,
		},
		DefaultSource: "expo",
		Sources:       DefaultSources(),
		Capture: CaptureConfig{
			Shell:               "/bin/sh",
			MaxRestarts:         3,
			RestartInitialDelay: 1 * time.Second,
			RestartMaxDelay:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			OutputFile: "",
			Verbose:    false,
		},
		Development: DevelopmentConfig{
			DebugMode:      false,
			MetricsEnabled: false,
		},
	}
}

// LoadConfig loads configuration from various sources
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("LOGWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.logwatch")
		v.AddConfigPath("/etc/logwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if configFile != "" {
				return nil, fmt.Errorf("config file not found: %s", configFile)
			}
		} else if os.IsNotExist(err) {
			// SetConfigFile reports a missing file as a plain fs error
			return nil, fmt.Errorf("config file not found: %s", configFile)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	// Server defaults
	v.SetDefault("server.name", defaults.Server.Name)
	v.SetDefault("server.transport", defaults.Server.Transport)
	v.SetDefault("server.address", defaults.Server.Address)

	// Query defaults
	v.SetDefault("query.backend", defaults.Query.Backend)
	v.SetDefault("query.tail_lines", defaults.Query.TailLines)
	v.SetDefault("query.error_lines", defaults.Query.ErrorLines)
	v.SetDefault("query.search_limit", defaults.Query.SearchLimit)
	v.SetDefault("query.error_keywords", defaults.Query.ErrorKeywords)
	v.SetDefault("query.timeout", defaults.Query.Timeout)

	// Source registry defaults
	v.SetDefault("default_source", defaults.DefaultSource)
	v.SetDefault("sources", defaults.Sources)

	// Capture defaults
	v.SetDefault("capture.shell", defaults.Capture.Shell)
	v.SetDefault("capture.max_restarts", defaults.Capture.MaxRestarts)
	v.SetDefault("capture.restart_initial_delay", defaults.Capture.RestartInitialDelay)
	v.SetDefault("capture.restart_max_delay", defaults.Capture.RestartMaxDelay)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output_file", defaults.Logging.OutputFile)
	v.SetDefault("logging.verbose", defaults.Logging.Verbose)

	// Development defaults
	v.SetDefault("development.debug_mode", defaults.Development.DebugMode)
	v.SetDefault("development.metrics_enabled", defaults.Development.MetricsEnabled)
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	// Validate server configuration
	if config.Server.Name == "" {
		return fmt.Errorf("server.name cannot be empty")
	}

	switch config.Server.Transport {
	case TransportStdio:
	case TransportSSE:
		if config.Server.Address == "" {
			return fmt.Errorf("server.address is required for the sse transport")
		}
	default:
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", config.Server.Transport)
	}

	// Validate query configuration
	if config.Query.Backend != BackendNative && config.Query.Backend != BackendExec {
		return fmt.Errorf("query.backend must be 'native' or 'exec', got %s", config.Query.Backend)
	}

	if config.Query.TailLines < 1 {
		return fmt.Errorf("query.tail_lines must be positive, got %d", config.Query.TailLines)
	}

	if config.Query.ErrorLines < 1 {
		return fmt.Errorf("query.error_lines must be positive, got %d", config.Query.ErrorLines)
	}

	if config.Query.SearchLimit < 1 {
		return fmt.Errorf("query.search_limit must be positive, got %d", config.Query.SearchLimit)
	}

	if len(config.Query.ErrorKeywords) == 0 {
		return fmt.Errorf("query.error_keywords cannot be empty")
	}
	for _, kw := range config.Query.ErrorKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("query.error_keywords cannot contain empty keywords")
		}
	}

	if config.Query.Timeout < 0 {
		return fmt.Errorf("query.timeout must be non-negative, got %v", config.Query.Timeout)
	}

	// Validate source registry
	if err := validateSources(config.Sources, config.DefaultSource); err != nil {
		return err
	}

	// Validate capture configuration
	if config.Capture.Shell == "" {
		return fmt.Errorf("capture.shell cannot be empty")
	}

	if config.Capture.MaxRestarts < 0 {
		return fmt.Errorf("capture.max_restarts must be non-negative, got %d", config.Capture.MaxRestarts)
	}

	if config.Capture.RestartInitialDelay <= 0 {
		return fmt.Errorf("capture.restart_initial_delay must be positive, got %v", config.Capture.RestartInitialDelay)
	}

	if config.Capture.RestartMaxDelay < config.Capture.RestartInitialDelay {
		return fmt.Errorf("capture.restart_max_delay must be at least capture.restart_initial_delay, got %v", config.Capture.RestartMaxDelay)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[config.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %s", config.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[config.Logging.Format] {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %s", config.Logging.Format)
	}

	return nil
}

// validateSources checks the registry invariants: at least one source,
// unique well-formed names, absolute artifact paths, a capture command for
// each source and a default that is itself registered.
func validateSources(sources []SourceConfig, defaultSource string) error {
	if len(sources) == 0 {
		return fmt.Errorf("sources cannot be empty")
	}

	seen := make(map[string]bool, len(sources))
	for i, src := range sources {
		if !sourceNamePattern.MatchString(src.Name) {
			return fmt.Errorf("sources[%d].name %q must match %s", i, src.Name, sourceNamePattern)
		}
		if seen[src.Name] {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, src.Name)
		}
		seen[src.Name] = true

		if !filepath.IsAbs(src.File) {
			return fmt.Errorf("sources[%d].file must be an absolute path, got %q", i, src.File)
		}
		if strings.TrimSpace(src.CaptureCommand) == "" {
			return fmt.Errorf("sources[%d].capture_command cannot be empty", i)
		}
	}

	if !seen[defaultSource] {
		return fmt.Errorf("default_source %q is not one of the configured sources", defaultSource)
	}

	return nil
}

// GetConfigPaths returns the paths where config files are searched
func GetConfigPaths() []string {
	paths := []string{
		"./config.yaml",
		"./config.yml",
		"./config.json",
		"./config.toml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".logwatch", "config.yaml"),
			filepath.Join(home, ".logwatch", "config.yml"),
			filepath.Join(home, ".logwatch", "config.json"),
			filepath.Join(home, ".logwatch", "config.toml"),
		)
	}

	paths = append(paths,
		"/etc/logwatch/config.yaml",
		"/etc/logwatch/config.yml",
		"/etc/logwatch/config.json",
		"/etc/logwatch/config.toml",
	)

	return paths
}

// GetEnvVarName returns the environment variable name for a config key
func GetEnvVarName(key string) string {
	return "LOGWATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ExampleConfig returns an example configuration for documentation
func ExampleConfig() *Config {
	config := DefaultConfig()

	config.Query.Backend = BackendExec
	config.Logging.Level = "debug"
	config.Logging.OutputFile = "/tmp/logwatch.log"
	config.Development.MetricsEnabled = true
	config.Sources = append(config.Sources, SourceConfig{
		Name:           "vite",
		File:           "/tmp/vite.log",
		Description:    "Vite development server",
		CaptureCommand: "script -q /tmp/vite.log npx vite",
		AlternativeCommands: []string{
			"logwatch capture vite -- npx vite",
		},
	})

	return config
}
