package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/vmform/internal/ir"
	"github.com/roach88/vmform/internal/validate"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Schema string
}

// CheckResult is the outcome of validating one values file.
type CheckResult struct {
	Schema string      `json:"schema"`
	Valid  bool        `json:"valid"`
	Errors ir.ErrorMap `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check --schema <schema.cue> <values.yaml>",
		Short: "Validate form values against a CUE schema",
		Long: `Run the validation gate on a values file without saving.

The values are unified with the schema's #Form definition (or the whole
file when it has none). Errors are reported per field path.

Exit codes:
  0 - Values are valid
  1 - Values are invalid
  2 - Command error (schema does not compile, values unreadable, etc.)

Examples:
  vmform check --schema article.cue draft.yaml
  vmform check --schema article.cue draft.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema file (required)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runCheck(opts *CheckOptions, valuesPath string, cmd *cobra.Command) error {
	schema, err := validate.LoadSchema(opts.Schema)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	values, err := loadValues(valuesPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load values", err)
	}

	errs, err := schema.Validate(cmd.Context(), values)
	if err != nil {
		return WrapExitError(ExitCommandError, "validation failed", err)
	}
	slog.Debug("values checked", "schema", schema.Name(), "errors", len(errs))

	result := CheckResult{Schema: schema.Name(), Valid: errs.Empty(), Errors: errs}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	w := cmd.OutOrStdout()

	if result.Valid {
		if out.JSON() {
			return out.Success(result)
		}
		fmt.Fprintf(w, "✓ %s is valid\n", valuesPath)
		return nil
	}

	message := fmt.Sprintf("%d invalid field(s)", len(errs))
	if out.JSON() {
		if err := out.Failure(CodeInvalid, message, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "✗ %s: %s\n", valuesPath, message)
		printErrors(w, errs)
	}
	return NewExitError(ExitFailure, message)
}
