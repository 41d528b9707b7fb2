package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/recsync/internal/record"
)

// ExtractResult is the JSON payload of the extract command.
type ExtractResult struct {
	Source string   `json:"source"`
	Files  []string `json:"files"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <archive.tar.gz>",
		Short: "Unpack an archive into a source",
		Long: `Unpack a tar.gz archive produced by "recsync archive" into a source
directory. Entries that would land outside the source are rejected.

Run "recsync import" afterwards to load the records.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExtract(opts *RootOptions, input string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(input)
	if err != nil {
		return a.formatter.Fail("extract failed", &record.Error{
			Code:    record.ErrCodeIO,
			Message: "cannot open archive",
			Path:    input,
			Err:     err,
		})
	}
	defer f.Close()

	files, err := a.svc.Extract(commandContext(cmd), f, opts.Source)
	if err != nil {
		return a.formatter.Fail("extract failed", err)
	}

	result := ExtractResult{Source: sourceName(a, opts.Source), Files: files}
	if a.formatter.Format == "json" {
		return a.formatter.Success(result)
	}

	fmt.Fprintf(a.formatter.Writer, "✓ Extracted %d file(s) into %s\n", len(files), result.Source)
	for _, p := range files {
		a.formatter.VerboseLog("  %s", p)
	}
	return nil
}
