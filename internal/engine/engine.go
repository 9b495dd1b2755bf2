package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/vmform/internal/form"
	"github.com/roach88/vmform/internal/ir"
)

// SaveParams is the payload handed to Persistence.OnSave.
type SaveParams struct {
	// CycleID identifies the save cycle.
	CycleID string

	// Seq is the seq of the snapshot captured for the cycle.
	Seq int64

	// Merged is DeepMerge(current, overrides), the values that passed validation.
	Merged ir.IRObject

	// Overrides is the override payload the caller passed to Save.
	Overrides ir.IRObject
}

// Persistence is the asynchronous save collaborator.
//
// OnSave returns the canonical values to rehydrate the form with, or nil
// when the form should be left as it is. It must be idempotent for
// repeated payloads.
type Persistence interface {
	OnSave(ctx context.Context, params SaveParams) (ir.IRObject, error)
}

// PersistenceFunc adapts a function to the Persistence interface.
type PersistenceFunc func(ctx context.Context, params SaveParams) (ir.IRObject, error)

// OnSave calls f.
func (f PersistenceFunc) OnSave(ctx context.Context, params SaveParams) (ir.IRObject, error) {
	return f(ctx, params)
}

// State is the engine's position in the save cycle.
type State int

const (
	// StateIdle means no cycle is in flight.
	StateIdle State = iota
	// StateSaving means a persistence call is outstanding.
	StateSaving
	// StateRehydrating means canonical values are being merged into the form.
	StateRehydrating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	case StateRehydrating:
		return "rehydrating"
	default:
		return "unknown"
	}
}

// OverlapPolicy decides what happens when Save is called while another
// cycle is in flight.
type OverlapPolicy int

const (
	// OverlapQueue makes a later Save wait (FIFO, context-aware) until the
	// previous cycle has fully reconciled. It then reads the current values.
	OverlapQueue OverlapPolicy = iota
	// OverlapReject makes a later Save fail with ErrSaveInFlight.
	OverlapReject
	// OverlapConcurrent lets cycles run side by side. Each cycle reconciles
	// against the snapshot it captured.
	OverlapConcurrent
)

func (p OverlapPolicy) String() string {
	switch p {
	case OverlapQueue:
		return "queue"
	case OverlapReject:
		return "reject"
	case OverlapConcurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// ParseOverlapPolicy parses a policy name. The empty string means
// OverlapQueue.
func ParseOverlapPolicy(name string) (OverlapPolicy, error) {
	switch name {
	case "", "queue":
		return OverlapQueue, nil
	case "reject":
		return OverlapReject, nil
	case "concurrent":
		return OverlapConcurrent, nil
	default:
		return 0, fmt.Errorf("unknown overlap policy %q", name)
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator sets the validation gate. Without one every save is valid.
func WithValidator(v Validator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithOverlapPolicy sets the overlap policy. Default: OverlapQueue.
func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithClock sets the sequencer used to stamp snapshots. Default: NewClock().
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the cycle ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithDisabled marks the engine disabled: Save and Submit return ErrDisabled.
func WithDisabled(disabled bool) Option {
	return func(e *Engine) {
		e.disabled = disabled
	}
}

// WithTracer records cycle events. Default: no tracing.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// Engine coordinates auto-save cycles for one form instance.
//
// Thread-safety model:
//   - Save, Submit and every accessor: safe from any goroutine
//   - the persistence call runs on the goroutine that called Save,
//     with no engine lock held
//   - reconciliations never overlap
type Engine struct {
	form      form.API
	persist   Persistence
	validator Validator
	logger    *slog.Logger
	clock     Sequencer
	ids       IDGenerator
	tracer    Tracer
	policy    OverlapPolicy
	disabled  bool

	// admit serialises cycles under OverlapQueue and OverlapReject.
	admit *semaphore.Weighted

	// reconcileMu is held across the form batch of a reconciliation.
	reconcileMu sync.Mutex

	// mu guards everything below. Never held while calling the form.
	mu          sync.Mutex
	snapshots   *snapshotStore
	state       State
	inFlight    int
	pending     ir.IRObject
	lastErrors  ir.ErrorMap
	detached    bool
	unsubscribe func()
}

// New creates an engine bound to f. The initial snapshot is taken from
// the form's current values.
func New(f form.API, p Persistence, opts ...Option) *Engine {
	e := &Engine{
		form:    f,
		persist: p,
		logger:  slog.Default(),
		ids:     UUIDv7Generator{},
		tracer:  nopTracer{},
		policy:  OverlapQueue,
		admit:   semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = NewClock()
	}

	e.snapshots = newSnapshotStore(f.Values(), e.clock)
	e.unsubscribe = f.Subscribe(e.onFormChange)
	return e
}

// Saving reports whether a persistence call is outstanding or a
// reconciliation is running.
func (e *Engine) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight > 0
}

// State returns the engine's position in the save cycle.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns a copy of the current snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshots.get().Clone()
}

// DirtySinceLastSave reports whether the form values differ from the
// snapshot. Computed on every call.
func (e *Engine) DirtySinceLastSave() bool {
	current := e.form.Values()
	e.mu.Lock()
	snap := e.snapshots.get()
	e.mu.Unlock()
	return IsDirtySinceLastSave(current, snap.Values)
}

// PendingRehydration returns the canonical values currently being merged
// into the form, or nil outside a reconciliation.
func (e *Engine) PendingRehydration() ir.IRObject {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return nil
	}
	return ir.CloneObject(e.pending)
}

// LastValidationErrors returns the errors of the last rejected save, or
// the errors recomputed after a reconciliation that resubmitted the form.
func (e *Engine) LastValidationErrors() ir.ErrorMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErrors.Clone()
}

// Disabled reports whether the engine was created with WithDisabled(true).
func (e *Engine) Disabled() bool {
	return e.disabled
}

// LeaveGuard reports whether leaving the form now would lose work: the
// form holds unsaved edits or a cycle is still in flight.
func (e *Engine) LeaveGuard() bool {
	return !e.form.Pristine() || e.Saving()
}

// Detach releases the engine from its form. Responses that arrive later
// are dropped without touching the form, and new saves fail with
// ErrDetached. Safe to call more than once.
func (e *Engine) Detach() {
	e.mu.Lock()
	if e.detached {
		e.mu.Unlock()
		return
	}
	e.detached = true
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	e.logger.Debug("engine detached")
}

// onFormChange refreshes the snapshot whenever the form returns to
// pristine while no cycle is in flight, e.g. after an external reset.
func (e *Engine) onFormChange() {
	if !e.form.Pristine() {
		return
	}
	values := e.form.Values()

	e.mu.Lock()
	if e.inFlight > 0 || e.detached || ir.Equal(values, e.snapshots.get().Values) {
		e.mu.Unlock()
		return
	}
	snap := e.snapshots.capture(values)
	e.mu.Unlock()

	e.logger.Debug("snapshot refreshed from pristine form", "seq", snap.Seq)
	e.tracer.Trace(TraceEvent{Kind: TraceSnapshotRefreshed, Seq: snap.Seq, Values: ir.CloneObject(snap.Values)})
}

func (e *Engine) setLastErrors(errs ir.ErrorMap) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if errs.Empty() {
		e.lastErrors = nil
		return
	}
	e.lastErrors = errs.Clone()
}
