package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a reconciliation scenario.
// Scenarios drive a form and an engine through a sequence of edits, saves
// and scripted persistence responses, then assert on the resulting trace
// and final form values.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the form's initial values.
	Initial map[string]any `yaml:"initial"`

	// Form configures the form substrate.
	Form FormConfig `yaml:"form,omitempty"`

	// Engine configures the engine under test.
	Engine EngineConfig `yaml:"engine,omitempty"`

	// Steps run in order on the scenario goroutine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and form values.
	// Supported types: trace_contains, trace_order, trace_count, final_values
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FormConfig configures the in-memory form.
type FormConfig struct {
	// RegisteredFields limits change detection to these paths.
	RegisteredFields []string `yaml:"registered_fields,omitempty"`

	// Required paths must hold a non-empty value for Submit to succeed.
	Required []string `yaml:"required,omitempty"`
}

// EngineConfig configures the engine.
type EngineConfig struct {
	// Required paths must hold a non-empty value for a save to pass the
	// validation gate.
	Required []string `yaml:"required,omitempty"`

	// Schema is a CUE schema file used as the validation gate, relative to
	// the scenario file. Required and Schema may be combined.
	Schema string `yaml:"schema,omitempty"`

	// Overlap is the overlap policy: queue (default), reject or concurrent.
	Overlap string `yaml:"overlap,omitempty"`

	// Disabled creates a disabled engine.
	Disabled bool `yaml:"disabled,omitempty"`
}

// Step is one scenario step. Exactly one field must be set.
//
// save and submit start a cycle on their own goroutine and return once it
// has either reached persistence or finished. respond and fail answer the
// oldest unanswered persistence call and wait for its cycle to finish.
type Step struct {
	Edit    *EditStep    `yaml:"edit,omitempty"`
	Save    *SaveStep    `yaml:"save,omitempty"`
	Submit  *SaveStep    `yaml:"submit,omitempty"`
	Respond *RespondStep `yaml:"respond,omitempty"`
	Fail    *FailStep    `yaml:"fail,omitempty"`
	Reset   *ResetStep   `yaml:"reset,omitempty"`
	Detach  *DetachStep  `yaml:"detach,omitempty"`
	Expect  *ExpectStep  `yaml:"expect,omitempty"`
}

// Step kinds, as reported in results and errors.
const (
	StepEdit    = "edit"
	StepSave    = "save"
	StepSubmit  = "submit"
	StepRespond = "respond"
	StepFail    = "fail"
	StepReset   = "reset"
	StepDetach  = "detach"
	StepExpect  = "expect"
)

// Kind returns the name of the step's set field, or "" if none or more
// than one is set.
func (s Step) Kind() string {
	var kinds []string
	if s.Edit != nil {
		kinds = append(kinds, StepEdit)
	}
	if s.Save != nil {
		kinds = append(kinds, StepSave)
	}
	if s.Submit != nil {
		kinds = append(kinds, StepSubmit)
	}
	if s.Respond != nil {
		kinds = append(kinds, StepRespond)
	}
	if s.Fail != nil {
		kinds = append(kinds, StepFail)
	}
	if s.Reset != nil {
		kinds = append(kinds, StepReset)
	}
	if s.Detach != nil {
		kinds = append(kinds, StepDetach)
	}
	if s.Expect != nil {
		kinds = append(kinds, StepExpect)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// EditStep changes one form field as a user would.
type EditStep struct {
	Path  string `yaml:"path"`
	Value any    `yaml:"value"`

	// Delete removes the field instead of setting it.
	Delete bool `yaml:"delete,omitempty"`
}

// SaveStep starts a save or submit with an optional override payload.
type SaveStep struct {
	Overrides map[string]any `yaml:"overrides,omitempty"`
}

// RespondStep answers a pending persistence call.
//
// Values is returned verbatim. Merge is deep-merged over the merged values
// the engine sent. With neither set, the call succeeds without canonical
// values and the form is not rehydrated.
type RespondStep struct {
	Values map[string]any `yaml:"values,omitempty"`
	Merge  map[string]any `yaml:"merge,omitempty"`
}

// FailStep fails a pending persistence call.
type FailStep struct {
	Message string `yaml:"message"`
}

// ResetStep resets the form to new initial values, as an external
// reset would.
type ResetStep struct {
	Values map[string]any `yaml:"values"`
}

// DetachStep detaches the engine from the form.
type DetachStep struct{}

// ExpectStep checks engine and form state at this point of the scenario.
// Unset fields are not checked.
type ExpectStep struct {
	Values       map[string]any    `yaml:"values,omitempty"`
	Dirty        *bool             `yaml:"dirty,omitempty"`
	Pristine     *bool             `yaml:"pristine,omitempty"`
	State        string            `yaml:"state,omitempty"`
	Outcome      string            `yaml:"outcome,omitempty"`
	Errors       map[string]string `yaml:"errors,omitempty"`
	NoErrors     bool              `yaml:"no_errors,omitempty"`
	SubmitCount  *int              `yaml:"submit_count,omitempty"`
	SubmitFailed *bool             `yaml:"submit_failed,omitempty"`
	LeaveGuard   *bool             `yaml:"leave_guard,omitempty"`
	Error        string            `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final form values.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Kind occurs, optionally with Changed
	// - "trace_order": Kinds occur in this relative order
	// - "trace_count": Kind occurs exactly Count times
	// - "final_values": the final form values contain Expect (subset match)
	Type string `yaml:"type"`

	Kind    string         `yaml:"kind,omitempty"`
	Kinds   []string       `yaml:"kinds,omitempty"`
	Changed []string       `yaml:"changed,omitempty"`
	Count   int            `yaml:"count,omitempty"`
	Expect  map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalValues   = "final_values"
)

var overlapPolicies = []string{"", "queue", "reject", "concurrent"}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if s := scenario.Engine.Schema; s != "" && !filepath.IsAbs(s) {
		scenario.Engine.Schema = filepath.Join(filepath.Dir(path), s)
	}
	if s := scenario.Engine.Schema; s != "" {
		if _, err := os.Stat(s); err != nil {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", s)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by path.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("name must not contain path separators")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if !slices.Contains(overlapPolicies, s.Engine.Overlap) {
		return fmt.Errorf("engine.overlap: unknown policy %q", s.Engine.Overlap)
	}

	for i, step := range s.Steps {
		kind := step.Kind()
		if kind == "" {
			return fmt.Errorf("steps[%d]: exactly one of edit, save, submit, respond, fail, reset, detach, expect is required", i)
		}
		if kind == StepEdit && step.Edit.Path == "" {
			return fmt.Errorf("steps[%d].edit: path is required", i)
		}
		if kind == StepRespond && step.Respond.Values != nil && step.Respond.Merge != nil {
			return fmt.Errorf("steps[%d].respond: values and merge are mutually exclusive", i)
		}
		if kind == StepFail && step.Fail.Message == "" {
			return fmt.Errorf("steps[%d].fail: message is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalValues:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_values", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
