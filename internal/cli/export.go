package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	WithReferences bool
}

// ExportResult is the JSON payload of a successful export.
type ExportResult struct {
	Source string   `json:"source"`
	Paths  []string `json:"paths"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <entity-type> [uuid]",
		Short: "Write live records to record files",
		Long: `Export live records of an entity type to the source directory.

With a uuid only that record is exported. --with-references also exports
every record it references, dependencies first.

Example:
  recsync export node
  recsync export node 5f1c... --with-references`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.WithReferences, "with-references", "r", false, "also export referenced records")

	return cmd
}

func runExport(opts *ExportOptions, args []string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	entityType := args[0]
	var paths []string
	if len(args) == 2 {
		paths, err = a.svc.ExportEntity(ctx, opts.Source, entityType, args[1], opts.WithReferences)
	} else {
		paths, err = a.svc.ExportType(ctx, opts.Source, entityType)
	}
	if err != nil {
		return a.formatter.Fail("export failed", err)
	}

	result := ExportResult{Source: sourceName(a, opts.Source), Paths: paths}
	if a.formatter.Format == "json" {
		return a.formatter.Success(result)
	}

	fmt.Fprintf(a.formatter.Writer, "✓ Exported %d record(s) to %s\n", len(paths), result.Source)
	for _, p := range paths {
		fmt.Fprintf(a.formatter.Writer, "  %s\n", p)
	}
	return nil
}

// sourceName resolves an empty source flag to the configured default.
func sourceName(a *app, source string) string {
	if source == "" {
		return a.settings.DefaultSource
	}
	return source
}
