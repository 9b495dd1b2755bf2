package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

func sampleTrace() []engine.TraceEvent {
	return []engine.TraceEvent{
		{Kind: engine.TraceRejected, CycleID: "cycle-1"},
		{Kind: engine.TraceSaveStarted, CycleID: "cycle-2", Seq: 2},
		{Kind: engine.TraceReconciled, CycleID: "cycle-2", Seq: 3, Changed: []string{"title"}},
		{Kind: engine.TraceSaveStarted, CycleID: "cycle-3", Seq: 4},
		{Kind: engine.TraceSaved, CycleID: "cycle-3"},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Kind: "saved"})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Kind: "dropped"})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, AssertTraceContains, assertErr.Type)
	assert.Contains(t, assertErr.Expected, "dropped")
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

func TestAssertTraceContains_Changed(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: "reconciled", Changed: []string{"title"}}))

	err := assertTraceContains(trace, Assertion{Kind: "reconciled", Changed: []string{"body"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "with changed [body]")
}

func TestAssertTraceOrder_Correct(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Kinds: []string{"rejected", "reconciled", "saved"}})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_RepeatedKinds(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Kinds: []string{"save_started", "save_started", "saved"}})
	assert.NoError(t, err)

	err = assertTraceOrder(sampleTrace(), Assertion{Kinds: []string{"reconciled", "reconciled"}})
	assert.Error(t, err)
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Kinds: []string{"saved", "rejected"}})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, AssertTraceOrder, assertErr.Type)
	assert.Contains(t, assertErr.Actual, "no rejected after position 5")
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		kind    string
		count   int
		wantErr bool
	}{
		{"save_started", 2, false},
		{"save_started", 1, true},
		{"save_started", 3, true},
		{"dropped", 0, false},
	}

	for _, tt := range tests {
		err := assertTraceCount(sampleTrace(), Assertion{Kind: tt.kind, Count: tt.count})
		if tt.wantErr {
			assert.Error(t, err, "%s x%d", tt.kind, tt.count)
		} else {
			assert.NoError(t, err, "%s x%d", tt.kind, tt.count)
		}
	}
}

func TestAssertFinalValues(t *testing.T) {
	result := NewResult()
	result.Final = ir.IRObject{
		"title": ir.IRString("B"),
		"image": ir.IRObject{"src": ir.IRString("a.png")},
		"count": ir.IRInt(3),
	}

	assert.NoError(t, assertFinalValues(result, Assertion{Expect: map[string]any{
		"title": "B",
		"image": map[string]any{"src": "a.png"},
	}}))

	err := assertFinalValues(result, Assertion{Expect: map[string]any{"count": 4}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count = 4")
	assert.Contains(t, err.Error(), "count = 3")

	err = assertFinalValues(result, Assertion{Expect: map[string]any{"missing": "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<missing>")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Final = ir.IRObject{"title": ir.IRString("B")}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Kind: "saved"},
		{Type: AssertTraceCount, Kind: "rejected", Count: 2},
		{Type: AssertFinalValues, Expect: map[string]any{"title": "B"}},
		{Type: "final_state"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "trace_count")
	assert.Contains(t, errs[1], `unknown assertion type "final_state"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 occurrences of saved",
		Actual:   "0 occurrences",
		Trace:    sampleTrace()[1:3],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 1 occurrences of saved")
	assert.Contains(t, msg, "Actual: 0 occurrences")
	assert.Contains(t, msg, "[1] save_started cycle-2")
	assert.Contains(t, msg, "[2] reconciled cycle-2 changed=[title]")
}
