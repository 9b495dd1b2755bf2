package engine

import (
	"context"
	"errors"

	"github.com/roach88/vmform/internal/form"
	"github.com/roach88/vmform/internal/ir"
)

// Submit is the explicit submit path: it clears LastValidationErrors,
// runs a save cycle with overrides, and then, whatever the save outcome,
// writes every override leaf onto the live form in one batch and calls
// the form's Submit.
//
// The save result is returned as is. A save error and a form submit error
// are joined.
func (e *Engine) Submit(ctx context.Context, overrides ir.IRObject) (SaveResult, error) {
	if e.disabled {
		return SaveResult{}, ErrDisabled
	}
	if e.isDetached() {
		return SaveResult{}, ErrDetached
	}
	e.setLastErrors(nil)

	res, saveErr := e.Save(ctx, overrides)
	if errors.Is(saveErr, ErrDetached) {
		return res, saveErr
	}

	if len(overrides) > 0 {
		e.form.Batch(func(m form.Mutator) {
			applyOverrides(m, overrides)
		})
	}

	submitErr := e.form.Submit(ctx)
	e.logger.Debug("form submitted", "cycle_id", res.CycleID, "outcome", res.Outcome)
	return res, errors.Join(saveErr, submitErr)
}
