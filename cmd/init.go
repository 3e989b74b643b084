package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/sharebridge/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Non-interactive setup: generate config.yaml",
	Long: `Generate config.yaml without interactive prompts.
An existing config is never overwritten unless --force is given.

Examples:
  sharebridge init
  sharebridge init --scheme myapp --domain myapp.com --addr 0.0.0.0:8787
  sharebridge init --telegram-token BOT_TOKEN --cli`,
	RunE: runInit,
}

var (
	initScheme        string
	initDomain        string
	initAddr          string
	initTelegramToken string
	initCLI           bool
	initForce         bool
)

func init() {
	initCmd.Flags().StringVar(&initScheme, "scheme", "", "Custom URI scheme of the destination app")
	initCmd.Flags().StringVar(&initDomain, "domain", "", "Web domain of the destination app")
	initCmd.Flags().StringVar(&initAddr, "addr", "", "Surface listen address")
	initCmd.Flags().StringVar(&initTelegramToken, "telegram-token", "", "Telegram bot token (optional)")
	initCmd.Flags().BoolVar(&initCLI, "cli", false, "Enable the stdin source by default")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil && !initForce {
		fmt.Fprintln(cmd.OutOrStdout(), "Config already exists, skipping:", configPath)
		return nil
	}

	cfg := buildInitConfig()
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Config created:", configPath)
	fmt.Fprintln(cmd.OutOrStdout(), "Run 'sharebridge serve' to start.")
	return nil
}

func buildInitConfig() *config.Config {
	cfg := config.DefaultConfig()
	if s := strings.TrimSuffix(strings.TrimSpace(initScheme), "://"); s != "" {
		cfg.App.Scheme = s
	}
	if d := strings.TrimSpace(initDomain); d != "" {
		cfg.App.Domain = d
	}
	if a := strings.TrimSpace(initAddr); a != "" {
		cfg.Surface.Addr = a
	}
	if tok := strings.TrimSpace(initTelegramToken); tok != "" {
		cfg.Channels.Telegram.Token = tok
	}
	cfg.Channels.CLI.Enabled = initCLI
	return cfg
}
