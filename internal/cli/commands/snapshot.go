package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/metagraph/internal/cli/ui"
	"github.com/conduit-lang/metagraph/internal/config"
	"github.com/conduit-lang/metagraph/internal/snapshot"
)

type snapshotOptions struct {
	configDir string
	redisAddr string
	upstream  string
	noColor   bool
}

// NewSnapshotCommand creates the snapshot command
func NewSnapshotCommand() *cobra.Command {
	var opts snapshotOptions

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Show the snapshot published by a running watch",
		Long: `Read the counters and dependency edges that "metagraph watch --redis"
publishes after every batch.

Examples:
  metagraph snapshot --redis localhost:6379
  metagraph snapshot --redis localhost:6379 --upstream file:src/Main.java
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runSnapshot(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.configDir, "config", ".", "Directory containing metagraph.yml")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address (overrides redis.addr)")
	cmd.Flags().StringVar(&opts.upstream, "upstream", "", "Only list the dependents of this upstream")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runSnapshot(ctx context.Context, out io.Writer, opts snapshotOptions) error {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return err
	}
	if opts.redisAddr != "" {
		cfg.Redis.Addr = opts.redisAddr
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("no redis address: set redis.addr or pass --redis")
	}

	publisher, err := snapshot.Dial(cfg.Redis.Addr, cfg.Redis.Prefix)
	if err != nil {
		return err
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if opts.upstream != "" {
		downstream, err := publisher.LoadDownstream(ctx, opts.upstream)
		if err != nil {
			return err
		}
		for _, d := range downstream {
			fmt.Fprintln(out, d)
		}
		return nil
	}

	stats, err := publisher.LoadStats(ctx)
	if err != nil {
		return err
	}
	kv := ui.NewKeyValueTable(out, opts.noColor)
	kv.AddRow("valid gets", stats.ValidGets)
	kv.AddRow("recursive gets", stats.RecursiveGets)
	kv.AddRow("cache puts", stats.CachePuts)
	kv.AddRow("cache hits", stats.CacheHits)
	kv.AddRow("cache misses", stats.CacheMisses)
	kv.AddRow("hit rate", fmt.Sprintf("%.1f%%", stats.HitRate()))
	kv.AddRow("cache evictions", stats.CacheEvictions)
	kv.AddRow("cache size", fmt.Sprintf("%d / %d", stats.CacheCurrentSize, stats.CacheMaximumSize))
	kv.AddRow("notifications", stats.Notifications)
	kv.AddRow("notify cutoffs", stats.NotifyCutoffs)
	kv.AddRow("rescans", stats.Rescans)
	kv.Render()

	upstreams, err := publisher.LoadUpstreams(ctx)
	if err != nil {
		return err
	}
	if len(upstreams) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	table := ui.NewTable(out, opts.noColor, "UPSTREAM", "DOWNSTREAM")
	for _, up := range upstreams {
		downstream, err := publisher.LoadDownstream(ctx, up)
		if err != nil {
			return err
		}
		table.AddRow(up, strings.Join(downstream, ", "))
	}
	table.Render()
	return nil
}
