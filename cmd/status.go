package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/decompcache/internal/cache"
	"github.com/Norgate-AV/decompcache/internal/consumer"
	"github.com/Norgate-AV/decompcache/internal/journal"
)

func newStatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:          "status",
		Short:        "Show cache size and recent runs",
		RunE:         runStatus,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	statusCmd.Flags().Int("runs", 5, "Number of recent runs to show")

	return statusCmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	count, size, err := cache.Stats(cfg.CacheRoot)
	if err != nil {
		logger.Warn("Manifest is unreadable and will be rebuilt by the next run", "error", err)
	}

	valid := len(consumer.NewReader(cfg.CacheRoot, logger, consumer.Options{}).GetCachedRoots())

	fmt.Fprintf(out, "Cache root: %s\n", cfg.CacheRoot)
	fmt.Fprintf(out, "Entries:    %d (%d valid)\n", count, valid)
	fmt.Fprintf(out, "Size:       %s\n", formatBytes(size))

	limit, _ := cmd.Flags().GetInt("runs")
	runs, err := journal.New(cfg.CacheRoot).Runs(limit)
	if err != nil {
		logger.Warn("Run history unavailable", "error", err)
		return nil
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	fmt.Fprintln(out, "\nRecent runs:")
	for _, run := range runs {
		fmt.Fprintf(out, "  %s  %d decompiled, %d cached, %d failed, %d total (%s)\n",
			run.Started.Local().Format(time.DateTime),
			run.Decompiled, run.Cached, run.Failed, run.Total,
			run.Duration().Round(time.Millisecond),
		)
	}

	if failures := runs[0].Failures; len(failures) > 0 {
		fmt.Fprintln(out, "\nFailures in last run:")
		for _, f := range failures {
			hint := ""
			if f.OutOfMemory {
				hint = " (lower --threads or raise jvm_heap)"
			}

			fmt.Fprintf(out, "  %s %s: %s%s\n", f.Library, f.Artifact, f.Error, hint)
		}
	}

	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
