package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/form"
	"github.com/roach88/vmform/internal/ir"
	"github.com/roach88/vmform/internal/store"
	"github.com/roach88/vmform/internal/validate"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Database string
	Document string
	Schema   string
	Override string
	Trim     bool
}

// SaveOutput is what the save command reports.
type SaveOutput struct {
	DocumentID string            `json:"document_id"`
	Result     engine.SaveResult `json:"result"`
	Values     ir.IRObject       `json:"values"`
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save --db <file> [--doc <id>] <values.yaml>",
		Short: "Save form values to a SQLite document store",
		Long: `Run one save cycle for a document.

The form starts from the document's stored values with the values file
merged over them. The cycle passes the validation gate (when --schema is
given), is written to the store and the canonical values, including the
document id and revision, are reconciled back into the form.

Without --doc a new document ID is generated.

Exit codes:
  0 - Saved
  1 - Rejected by validation or persistence failed
  2 - Command error (unreadable files, bad schema, etc.)

Examples:
  vmform save --db forms.db draft.yaml
  vmform save --db forms.db --doc 0190... --schema article.cue draft.yaml
  vmform save --db forms.db --doc 0190... draft.yaml --override publish.yaml --trim`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database file (required)")
	cmd.Flags().StringVar(&opts.Document, "doc", "", "document ID (default: new UUIDv7)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema gating the save")
	cmd.Flags().StringVar(&opts.Override, "override", "", "YAML file of override values sent with the save")
	cmd.Flags().BoolVar(&opts.Trim, "trim", false, "trim surrounding whitespace from stored strings")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSave(opts *SaveOptions, valuesPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	values, err := loadValues(valuesPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load values", err)
	}
	var overrides ir.IRObject
	if opts.Override != "" {
		if overrides, err = loadValues(opts.Override); err != nil {
			return WrapExitError(ExitCommandError, "failed to load overrides", err)
		}
	}

	engineOpts := []engine.Option{engine.WithLogger(slog.Default())}
	if opts.Schema != "" {
		schema, err := validate.LoadSchema(opts.Schema)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load schema", err)
		}
		engineOpts = append(engineOpts, engine.WithValidator(documentValidator(schema)))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	docID := opts.Document
	if docID == "" {
		docID = store.NewDocumentID()
	}

	initial, lastSeq, err := loadDocumentState(ctx, st, docID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read document", err)
	}
	engineOpts = append(engineOpts, engine.WithClock(engine.NewClockAt(lastSeq)))

	persistOpts := []store.PersisterOption{store.WithPersisterLogger(slog.Default())}
	if opts.Trim {
		persistOpts = append(persistOpts, store.WithCanonicalizer(store.TrimStrings))
	}

	f := form.New(ir.DeepMerge(initial, values))
	eng := engine.New(f, store.NewPersister(st, docID, persistOpts...), engineOpts...)
	defer eng.Detach()

	slog.Debug("saving document", "document_id", docID, "seq", lastSeq)
	res, saveErr := eng.Save(ctx, overrides)

	output := SaveOutput{DocumentID: docID, Result: res, Values: f.Values()}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	switch {
	case saveErr != nil:
		if out.JSON() {
			if err := out.Failure(CodeSaveFailed, saveErr.Error(), output); err != nil {
				return err
			}
		}
		return WrapExitError(ExitFailure, "save failed", saveErr)
	case res.Outcome == engine.OutcomeInvalid:
		message := fmt.Sprintf("%d invalid field(s)", len(res.Errors))
		if out.JSON() {
			if err := out.Failure(CodeInvalid, message, output); err != nil {
				return err
			}
		} else {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✗ %s rejected: %s\n", docID, message)
			printErrors(w, res.Errors)
		}
		return NewExitError(ExitFailure, message)
	}

	if out.JSON() {
		return out.Success(output)
	}
	return printSaveOutput(cmd.OutOrStdout(), output)
}

// loadDocumentState returns the stored canonical values of a document and
// the highest seq in its history. A document that does not exist yet
// starts empty at seq 0.
func loadDocumentState(ctx context.Context, st *store.Store, docID string) (ir.IRObject, int64, error) {
	doc, err := st.ReadDocument(ctx, docID)
	if errors.Is(err, store.ErrNotFound) {
		return ir.IRObject{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	cycles, err := st.ListCycles(ctx, docID)
	if err != nil {
		return nil, 0, err
	}
	var lastSeq int64
	for _, c := range cycles {
		lastSeq = max(lastSeq, c.Seq)
	}
	return doc.Canonical(), lastSeq, nil
}

// documentValidator gates the values without the reserved id and revision
// keys, which the schema does not describe.
func documentValidator(schema *validate.Schema) engine.Validator {
	return engine.ValidatorFunc(func(ctx context.Context, values ir.IRObject) (ir.ErrorMap, error) {
		return schema.Validate(ctx, store.StripReserved(values))
	})
}

func printSaveOutput(w io.Writer, output SaveOutput) error {
	res := output.Result
	fmt.Fprintf(w, "✓ %s %s (cycle %s, seq %d)\n", output.DocumentID, res.Outcome, res.CycleID, res.Seq)
	if rev, ok := output.Values[store.KeyRevision].(ir.IRInt); ok {
		fmt.Fprintf(w, "  revision: %d\n", rev)
	}
	return printValues(w, "  values", output.Values)
}
