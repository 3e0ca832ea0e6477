package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/decompcache/internal/config"
	"github.com/Norgate-AV/decompcache/internal/decompiler"
	"github.com/Norgate-AV/decompcache/internal/deps"
	"github.com/Norgate-AV/decompcache/internal/journal"
	"github.com/Norgate-AV/decompcache/internal/producer"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Decompile dependencies now",
		Long: `Collect dependency artifacts without published sources, decompile the
ones not already cached, and drop cache entries for artifacts that are no
longer dependencies.

A failing artifact never fails the run; it is counted and reported.`,
		RunE:         runProducer,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	addRunFlags(runCmd)

	return runCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("threads", "t", config.DefaultThreads, "Decompiler worker count (lower this if the decompiler runs out of memory)")
	cmd.Flags().String("decompiler", "", "Path to the Vineflower jar")
	cmd.Flags().String("java", "", "Java launcher used to run the decompiler")
	cmd.Flags().String("heap", "", "Decompiler JVM heap, e.g. 2g")
	cmd.Flags().StringP("deps", "d", "", "Resolved dependency listing (YAML or JSON)")
	cmd.Flags().StringSlice("scan", nil, "Maven or Gradle repository directories to scan")
	cmd.Flags().String("header", "", "Comment prepended to every decompiled file")
}

// newDecompiler builds the decompiler for a run. Replaced in tests.
var newDecompiler = func(cfg *config.Config, logger *slog.Logger) decompiler.Decompiler {
	return decompiler.NewVineflower(decompiler.VineflowerConfig{
		JavaPath: cfg.JavaPath,
		JarPath:  cfg.DecompilerPath,
		Heap:     cfg.JVMHeap,
	}, logger)
}

func runProducer(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.DecompilerPath == "" {
		return fmt.Errorf("%w: set decompiler_path or pass --decompiler", decompiler.ErrNotConfigured)
	}

	if cfg.DependencyFile == "" && len(cfg.ScanDirs) == 0 {
		return fmt.Errorf("no dependencies to process: set dependency_file or scan_dirs")
	}

	libs, err := deps.Collect(deps.Options{
		ListingFile:    cfg.DependencyFile,
		ScanDirs:       cfg.ScanDirs,
		ToolchainRoots: cfg.ToolchainRoots,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to collect dependencies: %w", err)
	}

	logger.Debug("Collected dependencies", "libraries", len(libs))

	p := producer.New(cfg.CacheRoot, newDecompiler(cfg, logger), producer.Options{
		Threads: cfg.Threads,
		Header:  cfg.Header,
	}, logger)
	p.SetJournal(journal.New(cfg.CacheRoot))

	ctx, cancel := signalContext(cmd)
	defer cancel()

	summary, err := p.Run(ctx, libs)
	fmt.Fprintf(cmd.OutOrStdout(), "Decompilation complete: %s\n", summary)

	if summary.Failed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Run \"decompcache status\" for failure details\n")
	}

	return err
}
