package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ListEntry describes one discovered record file.
type ListEntry struct {
	UUID       string   `json:"uuid"`
	EntityType string   `json:"entity_type"`
	Bundle     string   `json:"bundle"`
	Label      string   `json:"label,omitempty"`
	Path       string   `json:"path"`
	Depends    []string `json:"depends,omitempty"`
}

// ListResult is the JSON payload of the list command.
type ListResult struct {
	Records []ListEntry `json:"records"`
	Cycles  []string    `json:"cycles,omitempty"`
	Skipped []string    `json:"skipped,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List record files in import order",
		Long: `List the record files of a source in the order import would apply
them: every record after the records it depends on.

Dependency cycles and unreadable files are reported after the list.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}

	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Discover(commandContext(cmd), opts.Source)
	if err != nil {
		return a.formatter.Fail("list failed", err)
	}

	result := ListResult{Records: []ListEntry{}, Skipped: res.Skipped}
	for _, rec := range res.Records.Records() {
		result.Records = append(result.Records, ListEntry{
			UUID:       rec.Identity,
			EntityType: rec.RecordType,
			Bundle:     rec.Subtype,
			Label:      rec.DisplayLabel,
			Path:       rec.SourcePath,
			Depends:    rec.DependencyIdentities(),
		})
	}
	for _, c := range res.Cycles {
		result.Cycles = append(result.Cycles, c.Message)
	}

	if a.formatter.Format == "json" {
		return a.formatter.Success(result)
	}

	w := a.formatter.Writer
	if len(result.Records) == 0 {
		fmt.Fprintln(w, "No records found")
	}
	for i, e := range result.Records {
		fmt.Fprintf(w, "%3d. %s/%s %s", i+1, e.EntityType, e.Bundle, e.UUID)
		if e.Label != "" {
			fmt.Fprintf(w, " (%s)", e.Label)
		}
		fmt.Fprintln(w)
		if len(e.Depends) > 0 {
			a.formatter.VerboseLog("     depends on %s", strings.Join(e.Depends, ", "))
		}
	}
	if len(result.Cycles) > 0 {
		fmt.Fprintln(w, "\nCycles:")
		for _, c := range result.Cycles {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, p := range result.Skipped {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return nil
}
