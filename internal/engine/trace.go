package engine

import (
	"sync"

	"github.com/roach88/vmform/internal/ir"
)

// TraceKind names a point in the save cycle.
type TraceKind string

const (
	TraceRejected          TraceKind = "rejected"
	TraceSaveStarted       TraceKind = "save_started"
	TraceSaveFailed        TraceKind = "save_failed"
	TraceSaved             TraceKind = "saved"
	TraceReconciled        TraceKind = "reconciled"
	TraceResubmitted       TraceKind = "resubmitted"
	TraceDropped           TraceKind = "dropped"
	TraceSnapshotRefreshed TraceKind = "snapshot_refreshed"
)

// TraceEvent is one observation emitted by the engine. Fields that do not
// apply to a kind are left zero.
type TraceEvent struct {
	Kind    TraceKind   `json:"kind"`
	CycleID string      `json:"cycle_id,omitempty"`
	Seq     int64       `json:"seq,omitempty"`
	Changed []string    `json:"changed,omitempty"`
	Errors  ir.ErrorMap `json:"errors,omitempty"`
	Values  ir.IRObject `json:"values,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Tracer receives trace events. Trace may be called from any goroutine
// that drives a cycle and must not call back into the engine.
type Tracer interface {
	Trace(ev TraceEvent)
}

type nopTracer struct{}

func (nopTracer) Trace(TraceEvent) {}

// Recorder is a Tracer that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

// Trace appends ev.
func (r *Recorder) Trace(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in arrival order.
func (r *Recorder) Kinds() []TraceKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}
