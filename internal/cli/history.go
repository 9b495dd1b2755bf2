package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vmform/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Document string
}

// HistoryOutput is what the history command reports.
type HistoryOutput struct {
	DocumentID string        `json:"document_id"`
	Cycles     []store.Cycle `json:"cycles"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history --db <file> --doc <id>",
		Short: "Show the save cycles of a document",
		Long: `List every save cycle that reached the store for a document,
in seq order. Cycles that repeated the stored values are marked unchanged
and did not create a new revision.

Examples:
  vmform history --db forms.db --doc 0190...
  vmform history --db forms.db --doc 0190... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database file (required)")
	cmd.Flags().StringVar(&opts.Document, "doc", "", "document ID (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("doc")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	// Opening creates the file, so check first.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	cycles, err := st.ListCycles(cmd.Context(), opts.Document)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list cycles", err)
	}

	output := HistoryOutput{DocumentID: opts.Document, Cycles: cycles}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if out.JSON() {
		return out.Success(output)
	}

	w := cmd.OutOrStdout()
	if len(cycles) == 0 {
		fmt.Fprintf(w, "No cycles recorded for %s.\n", opts.Document)
		return nil
	}
	fmt.Fprintf(w, "%-6s %-38s %-8s %-9s %s\n", "SEQ", "CYCLE", "REV", "CHANGED", "PAYLOAD")
	for _, c := range cycles {
		changed := "no"
		if c.Changed {
			changed = "yes"
		}
		fmt.Fprintf(w, "%-6d %-38s %-8d %-9s %s\n", c.Seq, c.ID, c.Revision, changed, c.PayloadHash)
	}
	return nil
}
