package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/recsync/internal/engine"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions

	// Check fails the command when any record is not in sync.
	Check bool
}

// StatusResult is the JSON payload of the status command.
type StatusResult struct {
	Records []engine.StatusEntry `json:"records"`
	Counts  map[string]int       `json:"counts"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status [entity-type]",
		Short: "Compare record files with the live store",
		Long: `Report the sync status of every record file in a source and of every
live record that has no file:

  in_sync        file and live record match
  out_of_sync    both exist and differ
  not_imported   file exists, live record does not
  not_exported   live record exists, file does not

Example:
  recsync status
  recsync status node --check`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "exit 1 when any record is not in sync")

	return cmd
}

func runStatus(opts *StatusOptions, args []string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	entityType := ""
	if len(args) == 1 {
		entityType = args[0]
	}
	entries, err := a.svc.Status(commandContext(cmd), opts.Source, entityType)
	if err != nil {
		return a.formatter.Fail("status failed", err)
	}

	result := StatusResult{Records: entries, Counts: map[string]int{}}
	drift := 0
	for _, e := range entries {
		result.Counts[e.Status.String()]++
		if e.Status != engine.InSync {
			drift++
		}
	}

	if a.formatter.Format == "json" {
		if err := a.formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeStatusTable(a.formatter, entries, drift)
	}

	if opts.Check && drift > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) not in sync", drift))
	}
	return nil
}

func writeStatusTable(f *OutputFormatter, entries []engine.StatusEntry, drift int) {
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No records found")
		return
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tTYPE\tBUNDLE\tUUID\tLABEL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Status, e.EntityType, e.Bundle, e.UUID, e.Label)
	}
	tw.Flush()

	fmt.Fprintln(f.Writer)
	if drift == 0 {
		fmt.Fprintf(f.Writer, "✓ %d record(s) in sync\n", len(entries))
		return
	}
	fmt.Fprintf(f.Writer, "✗ %d of %d record(s) not in sync\n", drift, len(entries))
}
