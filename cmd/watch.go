package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/decompcache/internal/consumer"
	"github.com/Norgate-AV/decompcache/internal/roots"
)

func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print source root changes as the cache changes",
		Long: `Report the current source roots, then print every change to the valid
root set until interrupted. Each line is "+" or "-" followed by the
comparison ID, library and directory.`,
		RunE:         runWatch,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	watchCmd.Flags().Duration("interval", 2*time.Second, "Poll interval")
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period before reporting a change")

	return watchCmd
}

// printNotifier writes root changes to w
type printNotifier struct {
	w io.Writer
}

func (p printNotifier) RootsChanged(before, after []roots.SourceRoot) {
	diff := roots.DiffRoots(before, after)

	for _, r := range diff.Removed {
		fmt.Fprintf(p.w, "- %s\t%s\t%s\n", r.ComparisonID, r.Library, r.Dir)
	}

	for _, r := range diff.Added {
		fmt.Fprintf(p.w, "+ %s\t%s\t%s\n", r.ComparisonID, r.Library, r.Dir)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	reader := consumer.NewReader(cfg.CacheRoot, logger, consumer.Options{})
	exposer := roots.NewExposer(reader, printNotifier{w: cmd.OutOrStdout()}, roots.ExposerOptions{
		Extensions: cfg.SourceExtensions,
	}, logger)
	defer exposer.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	return exposer.Watch(ctx, roots.WatchOptions{
		PollInterval: interval,
		Debounce:     debounce,
	})
}
