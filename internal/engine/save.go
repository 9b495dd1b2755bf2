package engine

import (
	"context"
	"fmt"

	"github.com/roach88/vmform/internal/ir"
)

// Outcome is how a save cycle ended.
type Outcome int

const (
	// OutcomeInvalid: the validation gate rejected the merged values.
	// Persistence was not called and the snapshot is unchanged.
	OutcomeInvalid Outcome = iota + 1
	// OutcomeSaved: persistence succeeded and returned no values.
	OutcomeSaved
	// OutcomeReconciled: persistence returned canonical values and they
	// were merged into the form.
	OutcomeReconciled
	// OutcomeFailed: a collaborator failed; see the returned *SaveError.
	OutcomeFailed
	// OutcomeDropped: persistence returned after Detach; the response was
	// not applied.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSaved:
		return "saved"
	case OutcomeReconciled:
		return "reconciled"
	case OutcomeFailed:
		return "failed"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// MarshalText lets outcomes appear by name in JSON and YAML output.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// SaveResult describes a finished save cycle.
type SaveResult struct {
	CycleID string  `json:"cycle_id,omitempty"`
	Outcome Outcome `json:"outcome"`

	// Seq is the seq of the snapshot captured for the cycle.
	Seq int64 `json:"seq,omitempty"`

	// Errors holds the validation errors of an OutcomeInvalid cycle.
	Errors ir.ErrorMap `json:"errors,omitempty"`

	// Canonical holds the values persistence returned.
	Canonical ir.IRObject `json:"canonical,omitempty"`

	// Preserved lists the paths whose in-flight edits survived reconciliation.
	Preserved []string `json:"preserved,omitempty"`

	// Resubmitted is true if the form was submitted again after a
	// reconciliation because the previous submission had failed.
	Resubmitted bool `json:"resubmitted,omitempty"`
}

// cycle is the state of one in-flight save.
type cycle struct {
	id        string
	snapshot  Snapshot
	overrides ir.IRObject
}

// Save runs one save cycle with the given override payload and blocks
// until it completes. Overrides are deep-merged over the current form
// values for validation and persistence; they are not written to the form.
//
// Validation failure is not an error: it is reported as OutcomeInvalid
// with the error map. Collaborator failures are returned as *SaveError.
func (e *Engine) Save(ctx context.Context, overrides ir.IRObject) (SaveResult, error) {
	if e.disabled {
		return SaveResult{}, ErrDisabled
	}
	if e.isDetached() {
		return SaveResult{}, ErrDetached
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	res, resubmit, err := e.runCycle(ctx, ir.CloneObject(overrides))
	release()

	if resubmit {
		if serr := e.resubmit(ctx, res.CycleID); serr != nil {
			return res, serr
		}
		res.Resubmitted = true
	}
	return res, err
}

// acquire admits a cycle according to the overlap policy.
func (e *Engine) acquire(ctx context.Context) (release func(), err error) {
	switch e.policy {
	case OverlapConcurrent:
		return func() {}, nil
	case OverlapReject:
		if !e.admit.TryAcquire(1) {
			return nil, ErrSaveInFlight
		}
	default:
		if err := e.admit.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for in-flight save: %w", err)
		}
	}
	return func() { e.admit.Release(1) }, nil
}

// runCycle performs gate, persistence and reconciliation. The returned
// flag asks the caller to resubmit the form once the cycle is released.
func (e *Engine) runCycle(ctx context.Context, overrides ir.IRObject) (SaveResult, bool, error) {
	id := e.ids.Generate()
	current := e.form.Values()

	merged, errs, err := gate(ctx, e.validator, current, overrides)
	if err != nil {
		e.logger.Error("validator failed", "cycle_id", id, "error", err)
		return SaveResult{CycleID: id, Outcome: OutcomeFailed},
			false, &SaveError{Code: ErrCodeValidatorFailed, CycleID: id, Err: err}
	}
	if errs != nil {
		e.setLastErrors(errs)
		e.logger.Info("save rejected by validation", "cycle_id", id, "errors", errs.Paths())
		e.tracer.Trace(TraceEvent{Kind: TraceRejected, CycleID: id, Errors: errs.Clone()})
		return SaveResult{CycleID: id, Outcome: OutcomeInvalid, Errors: errs}, false, nil
	}

	c, err := e.begin(id, current, overrides)
	if err != nil {
		return SaveResult{CycleID: id}, false, err
	}
	res := SaveResult{CycleID: id, Seq: c.snapshot.Seq}

	e.logger.Debug("save started",
		"cycle_id", id,
		"seq", c.snapshot.Seq,
		"fingerprint", Fingerprint(merged),
	)
	e.tracer.Trace(TraceEvent{Kind: TraceSaveStarted, CycleID: id, Seq: c.snapshot.Seq, Values: ir.CloneObject(merged)})

	canonical, err := e.persist.OnSave(ctx, SaveParams{
		CycleID:   id,
		Seq:       c.snapshot.Seq,
		Merged:    merged,
		Overrides: ir.CloneObject(overrides),
	})
	if err != nil {
		e.finish()
		e.logger.Warn("save failed", "cycle_id", id, "error", err)
		e.tracer.Trace(TraceEvent{Kind: TraceSaveFailed, CycleID: id, Error: err.Error()})
		res.Outcome = OutcomeFailed
		return res, false, &SaveError{Code: ErrCodePersistenceFailed, CycleID: id, Err: err}
	}

	if canonical == nil {
		e.finish()
		e.logger.Info("save completed", "cycle_id", id, "outcome", OutcomeSaved)
		e.tracer.Trace(TraceEvent{Kind: TraceSaved, CycleID: id})
		res.Outcome = OutcomeSaved
		return res, false, nil
	}

	return e.reconcile(c, canonical, res)
}

// begin captures the cycle snapshot and moves the engine to saving.
func (e *Engine) begin(id string, current, overrides ir.IRObject) (*cycle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.detached {
		return nil, ErrDetached
	}
	e.lastErrors = nil
	snap := e.snapshots.capture(current)
	e.inFlight++
	e.state = StateSaving
	return &cycle{id: id, snapshot: snap, overrides: overrides}, nil
}

// finish ends a cycle. The engine returns to idle once no cycle is in flight.
func (e *Engine) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishLocked()
}

func (e *Engine) finishLocked() {
	e.inFlight--
	if e.inFlight <= 0 {
		e.inFlight = 0
		e.state = StateIdle
	} else {
		e.state = StateSaving
	}
}

func (e *Engine) isDetached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detached
}
