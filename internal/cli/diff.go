package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recsync/internal/engine"
)

// DiffResult is the JSON payload of the diff command.
type DiffResult struct {
	UUID   string            `json:"uuid"`
	Status engine.SyncStatus `json:"status"`
	Diff   string            `json:"diff,omitempty"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <entity-type> <uuid>",
		Short: "Show how a record file differs from the live record",
		Long: `Print a unified diff between a record file ("serialized") and a fresh
export of the live record ("live"). Keys ignored by status are left out.

Exits 1 when the record is not in sync.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runDiff(opts *RootOptions, entityType, uuid string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	diff, status, err := a.svc.Diff(commandContext(cmd), opts.Source, entityType, uuid)
	if err != nil {
		return a.formatter.Fail("diff failed", err)
	}

	if a.formatter.Format == "json" {
		if err := a.formatter.Success(DiffResult{UUID: uuid, Status: status, Diff: diff}); err != nil {
			return err
		}
	} else if status == engine.InSync {
		fmt.Fprintf(a.formatter.Writer, "✓ %s/%s is in sync\n", entityType, uuid)
	} else {
		fmt.Fprintf(a.formatter.Writer, "%s/%s: %s\n", entityType, uuid, status)
		fmt.Fprint(a.formatter.Writer, diff)
	}

	if status != engine.InSync {
		return NewExitError(ExitFailure, fmt.Sprintf("%s/%s is %s", entityType, uuid, status))
	}
	return nil
}
