package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recsync/internal/engine"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Force bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import [uuid]",
		Short: "Create or update live records from record files",
		Long: `Import the record files of a source into the live store, in
dependency order.

With a uuid only that record and the records it depends on are imported.
Records whose file has not changed since their last import are skipped
unless --force is given.

Example:
  recsync import
  recsync import --source staging --force`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "import unchanged records too")

	return cmd
}

func runImport(opts *ImportOptions, args []string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions, engine.WithForce(opts.Force))
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	var result *engine.ImportResult
	if len(args) == 1 {
		result, err = a.svc.ImportEntity(ctx, opts.Source, args[0])
	} else {
		result, err = a.svc.ImportSource(ctx, opts.Source)
	}
	if err != nil {
		return a.formatter.Fail("import failed", err)
	}

	if a.formatter.Format == "json" {
		return a.formatter.Success(result)
	}

	fmt.Fprintf(a.formatter.Writer, "✓ Imported %d record(s): %d created, %d updated, %d unchanged\n",
		result.Total(), len(result.Created), len(result.Updated), len(result.Skipped))
	for _, id := range result.Created {
		a.formatter.VerboseLog("created %s", id)
	}
	for _, id := range result.Updated {
		a.formatter.VerboseLog("updated %s", id)
	}
	for _, msg := range result.Missing {
		fmt.Fprintf(a.formatter.Writer, "  warning: %s\n", msg)
	}
	return nil
}
