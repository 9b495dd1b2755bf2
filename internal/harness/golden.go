package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

// TraceSnapshot captures what a scenario run did, for golden comparison.
// It is serialised with canonical JSON so the bytes are stable.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []engine.TraceEvent
	Cycles       []CycleRecord
	Final        ir.IRObject
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Zero-valued event fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{"kind": string(ev.Kind)}
		if ev.CycleID != "" {
			m["cycle_id"] = ev.CycleID
		}
		if ev.Seq != 0 {
			m["seq"] = ev.Seq
		}
		if len(ev.Changed) > 0 {
			m["changed"] = stringList(ev.Changed)
		}
		if len(ev.Errors) > 0 {
			m["errors"] = errorObject(ev.Errors)
		}
		if ev.Values != nil {
			m["values"] = ev.Values
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		trace[i] = m
	}

	cycles := make([]any, len(s.Cycles))
	for i, c := range s.Cycles {
		m := map[string]any{
			"step": c.Step,
			"op":   c.Op,
		}
		if c.CycleID != "" {
			m["cycle_id"] = c.CycleID
		}
		if c.Outcome != 0 {
			m["outcome"] = c.Outcome.String()
		}
		if len(c.Preserved) > 0 {
			m["preserved"] = stringList(c.Preserved)
		}
		if c.Resubmitted {
			m["resubmitted"] = true
		}
		if c.Error != "" {
			m["error"] = c.Error
		}
		cycles[i] = m
	}

	final := s.Final
	if final == nil {
		final = ir.IRObject{}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"cycles":        cycles,
		"final":         final,
	}
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func errorObject(errs ir.ErrorMap) ir.IRObject {
	out := make(ir.IRObject, len(errs))
	for k, v := range errs {
		out[k] = ir.IRString(v)
	}
	return out
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Cycles:       result.Cycles,
		Final:        result.Final,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
