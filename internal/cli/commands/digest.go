package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/metagraph/internal/cli/ui"
)

// NewDigestCommand creates the digest command
func NewDigestCommand() *cobra.Command {
	var (
		opts    settings
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "digest <files...>",
		Short: "Compute FileDigest metadata for files",
		Long: `Compute the FileDigest metadata of each file through a metadata service
and print the result together with the service counters.

Files that cannot be read are reported as invalid rather than failing the
command.

Examples:
  metagraph digest src/Main.java src/Util.java
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd.Context(), cmd.OutOrStdout(), opts, noColor, args)
		},
	}

	opts.bind(cmd)
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runDigest(ctx context.Context, out io.Writer, opts settings, noColor bool, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	table := ui.NewTable(out, noColor, "PATH", "VALID", "SIZE", "SHA256")
	err = eng.manager.Run(ctx, "digest", func(ctx context.Context) error {
		for _, path := range paths {
			if _, err := eng.files.Track(path); err != nil {
				return err
			}
			digest, err := eng.files.Digest(path)
			if err != nil {
				return err
			}
			if !digest.IsValid() {
				table.AddRow(digest.Path, "no", "-", "-")
				continue
			}
			table.AddRow(digest.Path, "yes", strconv.FormatInt(digest.Size, 10), digest.Hash)
		}
		return nil
	})
	if err != nil {
		return err
	}

	table.Render()

	summary := color.New(color.FgHiBlack)
	if noColor {
		summary.DisableColor()
	}
	fmt.Fprintln(out)
	summary.Fprintln(out, eng.svc.String())
	return nil
}
