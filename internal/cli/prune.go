package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// PruneResult is the JSON payload of the prune command.
type PruneResult struct {
	Removed []string `json:"removed"`
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune <uuid>",
		Short: "Remove a record file and the files only it needs",
		Long: `Remove the record file of uuid from a source, together with every
dependency no other record in the source still needs, and their assets.

Prune refuses, and removes nothing, when a record outside that set
depends on uuid.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPrune(opts *RootOptions, uuid string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.svc.Prune(commandContext(cmd), opts.Source, uuid)
	if err != nil {
		return a.formatter.Fail("prune failed", err)
	}

	if a.formatter.Format == "json" {
		return a.formatter.Success(PruneResult{Removed: removed})
	}

	fmt.Fprintf(a.formatter.Writer, "✓ Removed %d file(s)\n", len(removed))
	for _, p := range removed {
		fmt.Fprintf(a.formatter.Writer, "  %s\n", p)
	}
	return nil
}
