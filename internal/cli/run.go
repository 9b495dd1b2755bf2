package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vmform/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Snapshot bool // print the canonical trace snapshot instead of a summary
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one reconciliation scenario",
		Long: `Run a single harness scenario and print how each save ended.

The scenario drives a form and an engine against scripted persistence:
edits can land while a save is in flight and the response is merged back
when the scenario answers it.

Exit codes:
  0 - Scenario passed
  1 - An expectation or assertion failed
  2 - Command error (scenario not found, invalid scenario, etc.)

Examples:
  vmform run scenarios/edit_during_save.yaml
  vmform run scenarios/edit_during_save.yaml --snapshot
  vmform run scenarios/edit_during_save.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Snapshot, "snapshot", false, "print the canonical trace snapshot")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario not found: %s", path))
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger := slog.Default().With("scenario", scenario.Name)
	logger.Debug("running scenario", "steps", len(scenario.Steps))

	result, err := harness.RunContext(cmd.Context(), scenario, harness.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	w := cmd.OutOrStdout()
	out := &OutputFormatter{Format: opts.Format, Writer: w}

	switch {
	case opts.Snapshot:
		data, err := harness.MarshalSnapshot(scenario.Name, result)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to marshal snapshot", err)
		}
		fmt.Fprintln(w, string(data))
	case out.JSON() && result.Pass:
		if err := out.Success(result); err != nil {
			return err
		}
	case out.JSON():
		if err := out.Failure(CodeScenarioFailed, "scenario failed", result); err != nil {
			return err
		}
	default:
		if err := printResult(w, scenario.Name, result); err != nil {
			return err
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// printResult writes the text summary of a scenario run.
func printResult(w io.Writer, name string, result *harness.Result) error {
	mark := "✓"
	if !result.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, name)

	for _, c := range result.Cycles {
		line := fmt.Sprintf("  step %d %s", c.Step, c.Op)
		if c.CycleID != "" {
			line += " " + c.CycleID
		}
		if c.Outcome != 0 {
			line += " " + c.Outcome.String()
		}
		if len(c.Preserved) > 0 {
			line += " preserved=[" + strings.Join(c.Preserved, ",") + "]"
		}
		if c.Resubmitted {
			line += " resubmitted"
		}
		if c.Error != "" {
			line += " error=" + c.Error
		}
		fmt.Fprintln(w, line)
	}

	if err := printValues(w, "  final", result.Final); err != nil {
		return err
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}
