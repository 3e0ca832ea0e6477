package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/decompcache/internal/cache"
	"github.com/Norgate-AV/decompcache/internal/journal"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "clean",
		Short:        "Remove every cached tree, the manifest and the run history",
		RunE:         runClean,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	count, _, _ := cache.Stats(cfg.CacheRoot)

	if err := cache.Clear(cfg.CacheRoot); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	if err := journal.New(cfg.CacheRoot).Remove(); err != nil {
		logger.Warn("Failed to remove run history", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries from %s\n", count, cfg.CacheRoot)

	return nil
}
