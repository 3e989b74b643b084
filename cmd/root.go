// Package cmd provides CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/sharebridge/config"
	"github.com/linanwx/sharebridge/logger"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	logLevelOverride  string
	configDirOverride string
)

// rootCmd is the root command.
var rootCmd = &cobra.Command{
	Use:   "sharebridge",
	Short: "sharebridge - deliver shared links and images to a destination page",
	Long: `sharebridge accepts shares (text, links, images, deep links) from the
command line, an HTTP intent endpoint or a Telegram bot, extracts the link
worth keeping and delivers it to the destination page once that page is
ready to receive it.

Get started with: sharebridge init`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level for this run (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configDirOverride, "config-dir", "", "Config directory (default ~/.sharebridge)")
	rootCmd.PersistentPreRunE = applyRuntimeOverrides
}

func applyRuntimeOverrides(_ *cobra.Command, _ []string) error {
	config.SetConfigDir(strings.TrimSpace(configDirOverride))
	if logLevelOverride == "" {
		return nil
	}

	level, err := parseLogLevel(logLevelOverride)
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	cfg.Logging.Level = level
	return initLogger(cfg)
}

func parseLogLevel(raw string) (string, error) {
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug", "info", "warn", "error":
		return level, nil
	default:
		return "", fmt.Errorf("invalid --log-level: %q (use debug, info, warn, error)", raw)
	}
}

// initLogger applies the logging section of cfg, honouring --log-level.
func initLogger(cfg *config.Config) error {
	if logLevelOverride != "" {
		if level, err := parseLogLevel(logLevelOverride); err == nil {
			cfg.Logging.Level = level
		}
	}
	configDir, _ := config.ConfigDir()
	logCfg := logger.Config{
		Enabled: cfg.Logging.IsEnabled(),
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Stdout:  cfg.Logging.Stdout,
		File:    cfg.Logging.File,
	}
	if err := logger.Init(logCfg, configDir); err != nil {
		return fmt.Errorf("logger init error: %w", err)
	}
	return nil
}
