package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/linanwx/sharebridge/config"
	"github.com/linanwx/sharebridge/imagecache"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached shared images older than the retention",
	Long: `Remove cached shared images once, outside the service's own schedule.
The most recent image is always kept so the page can still show it.`,
	RunE: runPrune,
}

var pruneOlderThan time.Duration

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "Age cutoff (defaults to images.retention)")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	age := pruneOlderThan
	if age <= 0 {
		age = cfg.Images.Retention
	}
	if age <= 0 {
		return fmt.Errorf("no retention configured; pass --older-than")
	}

	dir, err := cfg.ImagesPath()
	if err != nil {
		return err
	}
	images, err := imagecache.New(dir)
	if err != nil {
		return err
	}
	removed, err := images.Prune(time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d image(s) older than %s from %s\n", removed, age, dir)
	return nil
}
