package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/decompcache/internal/config"
	"github.com/Norgate-AV/decompcache/internal/logging"
	"github.com/Norgate-AV/decompcache/internal/version"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "decompcache",
		Short: "Decompilation cache for source-less dependencies",
		Long: `Decompiles library artifacts that ship without a -sources jar into a
persistent cache, so code indexes can search them like ordinary sources.

Running without a subcommand is the same as "decompcache run".`,
		RunE:         runProducer,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		Version:      version.String(),
	}

	rootCmd.PersistentFlags().String("cache-root", "", "Cache directory (default <user cache dir>/decompcache)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only log errors")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	addRunFlags(rootCmd)

	rootCmd.AddCommand(
		newRunCmd(),
		newRootsCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newCleanCmd(),
	)

	return rootCmd
}

func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig loads layered configuration for cmd and builds its logger
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.NewLoader().Load(cmd)
	if err != nil {
		return nil, nil, err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	level := logging.LevelFromVerbosity(cfg.LogLevel, cfg.Verbose, quiet)
	logger := logging.NewLogger(cmd.ErrOrStderr(), level, logging.ParseFormat(cfg.LogFormat))

	return cfg, logger, nil
}

// signalContext is cancelled on interrupt or termination
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
