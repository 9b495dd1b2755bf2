package engine

import (
	"context"
	"fmt"

	"github.com/roach88/vmform/internal/form"
	"github.com/roach88/vmform/internal/ir"
)

// reconcile merges the canonical values returned by persistence into the
// live form. It is the only path from rehydrating back to idle.
//
// Everything happens inside one form batch: the values are read at the
// moment the response is applied, the form is reset to canonical, and
// every path changed since the cycle snapshot is written back on top.
func (e *Engine) reconcile(c *cycle, canonical ir.IRObject, res SaveResult) (SaveResult, bool, error) {
	e.reconcileMu.Lock()
	defer e.reconcileMu.Unlock()

	e.mu.Lock()
	if e.detached {
		e.finishLocked()
		e.mu.Unlock()
		e.logger.Info("late save response dropped", "cycle_id", c.id)
		e.tracer.Trace(TraceEvent{Kind: TraceDropped, CycleID: c.id})
		res.Outcome = OutcomeDropped
		return res, false, nil
	}
	e.state = StateRehydrating
	e.pending = ir.CloneObject(canonical)
	e.mu.Unlock()

	var (
		preserved    []string
		submitFailed bool
	)
	e.form.Batch(func(m form.Mutator) {
		preserved, submitFailed = rehydrate(m, c, canonical)
	})

	e.mu.Lock()
	snap := e.snapshots.capture(canonical)
	e.pending = nil
	e.finishLocked()
	e.mu.Unlock()

	e.logger.Info("save reconciled",
		"cycle_id", c.id,
		"seq", snap.Seq,
		"outcome", OutcomeReconciled,
		"changed", preserved,
		"fingerprint", Fingerprint(canonical),
	)
	e.tracer.Trace(TraceEvent{
		Kind:    TraceReconciled,
		CycleID: c.id,
		Seq:     snap.Seq,
		Changed: preserved,
		Values:  ir.CloneObject(canonical),
	})

	res.Outcome = OutcomeReconciled
	res.Canonical = ir.CloneObject(canonical)
	res.Preserved = preserved
	return res, submitFailed, nil
}

// rehydrate applies canonical values to the form inside a batch and
// returns the preserved paths and the submit-failed flag as it stood
// before the reset cleared it.
func rehydrate(m form.Mutator, c *cycle, canonical ir.IRObject) ([]string, bool) {
	current := m.Values()
	submitFailed := m.SubmitFailed()

	var changed []string
	if IsDirtySinceLastSave(current, c.snapshot.Values) {
		changed = ChangedPaths(current, c.snapshot.Values, m.RegisteredFields()...)
	}

	m.Reset(canonical)
	for _, p := range changed {
		if v, ok := ir.GetIn(current, p); ok {
			m.Change(p, v)
		} else {
			m.Change(p, nil)
		}
	}

	if submitFailed {
		applyOverrides(m, c.overrides)
	}
	return changed, submitFailed
}

// applyOverrides writes every override leaf onto the form. An empty
// object leaf is skipped when the form already holds an object there, so
// {"image": {}} adds nothing instead of wiping image.src; this matches
// ir.DeepMerge.
func applyOverrides(m form.Mutator, overrides ir.IRObject) {
	paths := ir.LeafPaths(overrides)
	if len(paths) == 0 {
		return
	}
	current := m.Values()
	for _, p := range paths {
		v, _ := ir.GetIn(overrides, p)
		if obj, ok := v.(ir.IRObject); ok && len(obj) == 0 {
			if existing, ok := ir.GetIn(current, p); ok {
				if _, isObj := existing.(ir.IRObject); isObj {
					continue
				}
			}
		}
		m.Change(p, v)
	}
}

// resubmit submits the form once after a reconciliation that followed a
// failed submission, then recomputes LastValidationErrors from the
// current values so they survive the refresh.
func (e *Engine) resubmit(ctx context.Context, cycleID string) error {
	if err := e.form.Submit(ctx); err != nil {
		return fmt.Errorf("resubmit after cycle %s: %w", cycleID, err)
	}

	var errs ir.ErrorMap
	if e.validator != nil {
		var err error
		errs, err = e.validator.Validate(ctx, e.form.Values())
		if err != nil {
			return &SaveError{Code: ErrCodeValidatorFailed, CycleID: cycleID, Err: err}
		}
	}
	e.setLastErrors(errs)

	e.logger.Info("form resubmitted after reconciliation", "cycle_id", cycleID, "errors", errs.Paths())
	e.tracer.Trace(TraceEvent{Kind: TraceResubmitted, CycleID: cycleID, Errors: errs.Clone()})
	return nil
}
