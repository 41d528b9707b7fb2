package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ArchiveResult is the JSON payload of the archive command.
type ArchiveResult struct {
	Source string `json:"source"`
	Output string `json:"output"`
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <output.tar.gz>",
		Short: "Pack a source into a gzip-compressed tar archive",
		Long: `Write every record file of a source, and the asset of each file
record, to a tar.gz archive. Use "-" to write the archive to stdout.

Archives of unchanged sources are byte-identical.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runArchive(opts *RootOptions, output string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	if output == "-" {
		if err := a.svc.Download(ctx, cmd.OutOrStdout(), opts.Source); err != nil {
			return a.formatter.Fail("archive failed", err)
		}
		return nil
	}

	if err := writeArchiveFile(output, func(w io.Writer) error {
		return a.svc.Download(ctx, w, opts.Source)
	}); err != nil {
		return a.formatter.Fail("archive failed", err)
	}

	result := ArchiveResult{Source: sourceName(a, opts.Source), Output: output}
	if a.formatter.Format == "json" {
		return a.formatter.Success(result)
	}
	return a.formatter.Success(fmt.Sprintf("✓ Archived %s to %s", result.Source, output))
}

// writeArchiveFile creates path and removes it again when write fails.
func writeArchiveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
