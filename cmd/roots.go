package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/decompcache/internal/consumer"
	"github.com/Norgate-AV/decompcache/internal/roots"
)

func newRootsCmd() *cobra.Command {
	rootsCmd := &cobra.Command{
		Use:   "roots",
		Short: "List valid cached source roots",
		Long: `List the cache entries whose artifact is unchanged and whose decompiled
tree is still on disk. Entries failing either check are left out.`,
		RunE:         runRoots,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	rootsCmd.Flags().Bool("json", false, "Print JSON")
	rootsCmd.Flags().Bool("watch-roots", false, "Print only the directories to watch for external changes")

	return rootsCmd
}

func runRoots(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	watchOnly, _ := cmd.Flags().GetBool("watch-roots")

	reader := consumer.NewReader(cfg.CacheRoot, logger, consumer.Options{})
	out := cmd.OutOrStdout()

	if watchOnly {
		dirs := reader.RootsToWatch()
		if asJSON {
			return writeJSON(cmd, dirs)
		}

		for _, dir := range dirs {
			fmt.Fprintln(out, dir)
		}

		return nil
	}

	exposed := roots.FromCached(reader.GetCachedRoots(), cfg.SourceExtensions)
	if asJSON {
		return writeJSON(cmd, exposed)
	}

	for _, r := range exposed {
		fmt.Fprintf(out, "%s\t%s\t%s\n", r.ComparisonID, r.Library, r.Dir)
	}

	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	return nil
}
