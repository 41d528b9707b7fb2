package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/recsync/internal/discovery"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions

	// Import re-imports the source after every change.
	Import bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-scan a source whenever its files change",
		Long: `Watch a source directory and re-discover its records on every change.
With --import each change is followed by an import of the source.

Runs until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Import, "import", false, "import the source after every change")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	source := sourceName(a, opts.Source)
	fmt.Fprintf(a.formatter.Writer, "Watching %s. Press Ctrl-C to stop.\n", source)

	onChange := func(res *discovery.Result) {
		fmt.Fprintf(a.formatter.Writer, "%s changed: %d record(s), %d cycle(s), %d skipped\n",
			source, res.Records.Len(), len(res.Cycles), len(res.Skipped))
		if !opts.Import {
			return
		}
		result, err := a.svc.ImportSource(ctx, opts.Source)
		if err != nil {
			a.logger.Error("import failed", "source", source, "error", err)
			return
		}
		fmt.Fprintf(a.formatter.Writer, "  imported: %d created, %d updated, %d unchanged\n",
			len(result.Created), len(result.Updated), len(result.Skipped))
	}

	if err := a.svc.Watch(ctx, opts.Source, onChange); err != nil {
		return a.formatter.Fail("watch failed", err)
	}

	slog.Info("watcher stopped", "source", source)
	return nil
}
