package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Trace    []engine.TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", i+1, event.Kind)
		if event.CycleID != "" {
			fmt.Fprintf(&buf, " %s", event.CycleID)
		}
		if len(event.Changed) > 0 {
			fmt.Fprintf(&buf, " changed=%v", event.Changed)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// assertTraceContains checks that an event of the given kind occurs. If
// Changed is set, the event's changed paths must equal it.
func assertTraceContains(trace []engine.TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if string(event.Kind) != assertion.Kind {
			continue
		}
		if assertion.Changed == nil || slices.Equal(event.Changed, assertion.Changed) {
			return nil
		}
	}

	expected := fmt.Sprintf("event %s", assertion.Kind)
	if assertion.Changed != nil {
		expected += fmt.Sprintf(" with changed %v", assertion.Changed)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that kinds occur in the given relative order.
// Events need not be consecutive; each kind matches after the previous
// match.
func assertTraceOrder(trace []engine.TraceEvent, assertion Assertion) error {
	pos := 0
	for _, kind := range assertion.Kinds {
		idx := slices.IndexFunc(trace[pos:], func(ev engine.TraceEvent) bool {
			return string(ev.Kind) == kind
		})
		if idx < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("no %s after position %d", kind, pos),
				Trace:    trace,
			}
		}
		pos += idx + 1
	}
	return nil
}

// assertTraceCount checks that the kind occurs exactly Count times.
func assertTraceCount(trace []engine.TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if string(event.Kind) == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalValues checks that every path in Expect holds the expected
// value in the final form values. Fields not mentioned are ignored.
func assertFinalValues(result *Result, assertion Assertion) error {
	expected, err := ir.ObjectFromGo(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_values: %w", err)
	}

	for _, path := range ir.LeafPaths(expected) {
		want, _ := ir.GetIn(expected, path)
		got, ok := ir.GetIn(result.Final, path)
		if !ok || !ir.Equal(got, want) {
			return &AssertionError{
				Type:     AssertFinalValues,
				Expected: fmt.Sprintf("%s = %s", path, valueString(want)),
				Actual:   fmt.Sprintf("%s = %s", path, valueString(got)),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func valueString(v ir.IRValue) string {
	if v == nil {
		return "<missing>"
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalValues:
			err = assertFinalValues(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
