package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/metagraph/internal/diag"
	"github.com/conduit-lang/metagraph/internal/snapshot"
	"github.com/conduit-lang/metagraph/internal/watch"
)

type watchOptions struct {
	settings
	dirs      []string
	diagAddr  string
	redisAddr string
}

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep file metadata current while files change",
		Long: `Track every matching file under the watched directories and notify the
dependents of each file as it changes.

Changes are debounced into batches. Each batch runs as one operation, after
which the snapshot is published to Redis when --redis is set.

Examples:
  # Watch the current directory with settings from metagraph.yml
  metagraph watch

  # Serve diagnostics and publish snapshots
  metagraph watch --diag :7070 --redis localhost:6379
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), opts)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringSliceVar(&opts.dirs, "dir", nil, "Directories to watch (overrides watch.dirs)")
	cmd.Flags().StringVar(&opts.diagAddr, "diag", "", "Diagnostics HTTP address (overrides diag.addr)")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for snapshots (overrides redis.addr)")

	return cmd
}

// runWatch blocks until ctx is done. Operations already admitted finish even
// when ctx ends part way through.
func runWatch(ctx context.Context, out io.Writer, opts watchOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if len(opts.dirs) > 0 {
		cfg.Watch.Dirs = opts.dirs
	}
	if opts.diagAddr != "" {
		cfg.Diag.Addr = opts.diagAddr
	}
	if opts.redisAddr != "" {
		cfg.Redis.Addr = opts.redisAddr
	}

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	notifier := watch.NewNotifier(eng.svc, eng.files, eng.manager, logger)

	if cfg.Redis.Addr != "" {
		publisher, err := snapshot.Dial(cfg.Redis.Addr, cfg.Redis.Prefix)
		if err != nil {
			return err
		}
		defer publisher.Close()

		notifier.AfterBatch(func(ctx context.Context, paths []string) error {
			return publisher.Publish(ctx, eng.svc.Stats(), eng.svc.Dependencies().Edges())
		})
	}

	opCtx := context.WithoutCancel(ctx)
	watcher, err := watch.NewFileWatcher(watch.WatcherConfig{
		Dirs:     cfg.Watch.Dirs,
		Patterns: cfg.Watch.Patterns,
		Ignored:  cfg.Watch.Ignored,
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
	}, func(paths []string) error {
		return notifier.HandleChanges(opCtx, paths)
	})
	if err != nil {
		return err
	}

	files, err := watcher.Files()
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	if err := notifier.Track(opCtx, files); err != nil {
		return fmt.Errorf("failed to track files: %w", err)
	}

	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	diagErr := make(chan error, 1)
	if cfg.Diag.Addr != "" {
		server := diag.NewServer(eng.svc, eng.manager, logger)
		go func() {
			diagErr <- server.ListenAndServe(ctx, cfg.Diag.Addr)
		}()
	}

	banner := color.New(color.FgCyan, color.Bold)
	info := color.New(color.FgWhite)
	banner.Fprintln(out, "metagraph watching")
	info.Fprintf(out, "   Files tracked: %d\n", len(files))
	for _, dir := range cfg.Watch.Dirs {
		info.Fprintf(out, "   Directory: %s\n", dir)
	}
	if cfg.Diag.Addr != "" {
		info.Fprintf(out, "   Diagnostics: http://%s\n", cfg.Diag.Addr)
	}

	select {
	case <-ctx.Done():
	case err := <-diagErr:
		if err != nil {
			return fmt.Errorf("diagnostics server failed: %w", err)
		}
	}

	if err := watcher.Stop(); err != nil {
		logger.Warn("failed to stop watcher", zap.Error(err))
	}
	return eng.manager.Run(opCtx, "shutdown", func(ctx context.Context) error {
		logger.Info("watch stopped", zap.Stringer("stats", eng.svc.Stats()))
		return nil
	})
}
