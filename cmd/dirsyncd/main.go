package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/replikat/dirsyncd/internal/config"
	"github.com/replikat/dirsyncd/internal/sync"
	"github.com/replikat/dirsyncd/internal/trigger"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	logFile   string

	// Sync flags
	sourceDir   string
	replicaDir  string
	intervalSec int
	dryRun      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dirsyncd",
	Short: "One-way periodic directory tree synchronization",
	Long: `dirsyncd mirrors the contents of a source directory into a replica
directory so that the replica's tree structure and file contents become
identical to the source's after each cycle. Additions, content changes
and deletions in the source are all reflected in the replica.

It can run a single synchronization cycle (via cron or a systemd timer)
or as a long-running daemon that synchronizes on a fixed interval.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Perform a one-time synchronization cycle",
	Long: `Sync takes a snapshot of the source and replica trees, computes the
directory creations, file and directory deletions, and file copies needed
to make the replica match the source, and applies them.

Files whose content digest is unchanged are skipped even when their
modification times differ.`,
	RunE: runSync,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the synchronization daemon",
	Long: `Run synchronizes once immediately, then once per configured interval.
A cycle that is still running when the next interval elapses causes that
interval's cycle to be skipped with a warning; cycles never overlap.

When the trigger endpoint is enabled in the configuration, an HTTP server
accepts authenticated out-of-schedule sync requests.`,
	RunE: runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dirsyncd %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/dirsyncd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log-file", "l", "", "also write logs to this file")

	// Shared sync/run flags, overriding config file values
	for _, cmd := range []*cobra.Command{syncCmd, runCmd} {
		cmd.Flags().StringVarP(&sourceDir, "source", "i", "", "source directory path")
		cmd.Flags().StringVarP(&replicaDir, "replica", "o", "", "replica directory path")
		cmd.Flags().IntVarP(&intervalSec, "interval", "p", 0, "synchronization interval in seconds")
	}
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")

	// Add commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	cfg, logger, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()

	engine := sync.NewEngine(cfg, logger, dryRun)

	if err := engine.Run(ctx); err != nil {
		logger.Error("synchronization failed", "error", err)
		return err
	}

	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	cfg, logger, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()

	engine := sync.NewEngine(cfg, logger, false)
	scheduler := sync.NewScheduler(engine, cfg.Interval(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if cfg.Serve.Enabled {
		server, err := trigger.NewServer(cfg, scheduler, engine, logger)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	logger.Info("daemon started", "interval", cfg.Interval())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon stopped", "error", err)
		return err
	}

	logger.Info("daemon stopped")
	return nil
}

// setup resolves the configuration and builds the process logger. Config
// loading logs through a console-only bootstrap logger; the final logger
// additionally writes to the configured log file.
func setup() (*config.Config, *slog.Logger, func() error, error) {
	bootstrap := slog.New(consoleHandler())

	cfg, err := loadConfig(bootstrap)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Log.File)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return cfg, logger, closeLog, nil
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	var cfg *config.Config

	if cfgFile != "" {
		logger.Info("loading configuration", "path", cfgFile)
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	// Command-line flags override config file values.
	if sourceDir != "" {
		abs, err := filepath.Abs(sourceDir)
		if err != nil {
			return nil, fmt.Errorf("invalid source path: %w", err)
		}
		cfg.Paths.Source = abs
	}
	if replicaDir != "" {
		abs, err := filepath.Abs(replicaDir)
		if err != nil {
			return nil, fmt.Errorf("invalid replica path: %w", err)
		}
		cfg.Paths.Replica = abs
	}
	if intervalSec != 0 {
		cfg.Sync.IntervalSeconds = intervalSec
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("configuration loaded",
		"source", cfg.Paths.Source,
		"replica", cfg.Paths.Replica,
		"interval", cfg.Interval(),
		"workers", cfg.Sync.Workers,
		"hash", cfg.Sync.Hash)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
