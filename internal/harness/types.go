package harness

import (
	"fmt"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect step and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds the engine trace events in emission order.
	Trace []engine.TraceEvent `json:"trace"`

	// Cycles holds one record per save or submit step, in completion order.
	Cycles []CycleRecord `json:"cycles"`

	// Final is the form values after the last step.
	Final ir.IRObject `json:"final"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// CycleRecord is how a save or submit step ended.
type CycleRecord struct {
	Step        int            `json:"step"`
	Op          string         `json:"op"`
	CycleID     string         `json:"cycle_id,omitempty"`
	Outcome     engine.Outcome `json:"outcome,omitempty"`
	Preserved   []string       `json:"preserved,omitempty"`
	Resubmitted bool           `json:"resubmitted,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.TraceEvent{},
		Cycles: []CycleRecord{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// LastCycle returns the most recently finished cycle, if any.
func (r *Result) LastCycle() (CycleRecord, bool) {
	if len(r.Cycles) == 0 {
		return CycleRecord{}, false
	}
	return r.Cycles[len(r.Cycles)-1], true
}

// StepError reports a step that could not be executed at all, as opposed
// to an expectation that did not match.
type StepError struct {
	Step int
	Kind string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
