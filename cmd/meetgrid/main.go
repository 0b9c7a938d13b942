package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meetgrid/internal/config"
	appLog "meetgrid/internal/log"
)

const version = "0.1.0"

var (
	cfg        *config.Config
	configPath string
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:           "meetgrid",
	Short:         "Find a common meeting time from proposed slots and availability",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/meetgrid/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info or error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human-readable console logs instead of JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and sets up logging before any command runs.
func loadConfig() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		// Load still returns defaults when only the first-run save failed,
		// which is enough for the offline subcommands.
		if cfg == nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		defer appLog.Debug("config not saved, using defaults", "config_path", configPath, "err", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	appLog.Setup(os.Stderr, appLog.ParseLevel(level), prettyLogs)
	appLog.Debug("effective config",
		"config_path", configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"locale", cfg.Locale,
		"time_format", cfg.TimeFormat,
		"window_weeks", cfg.WindowWeeks,
		"strict_tokens", cfg.StrictTokens,
		"calendars", len(cfg.Calendars),
	)
	return nil
}
