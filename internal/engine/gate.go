package engine

import (
	"context"

	"github.com/roach88/vmform/internal/ir"
)

// Validator checks candidate form values. A non-empty ErrorMap means the
// values are invalid; a non-nil error means the validator itself failed.
type Validator interface {
	Validate(ctx context.Context, values ir.IRObject) (ir.ErrorMap, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, values ir.IRObject) (ir.ErrorMap, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, values ir.IRObject) (ir.ErrorMap, error) {
	return f(ctx, values)
}

// gate runs the validator over DeepMerge(current, overrides).
// A nil validator accepts everything.
func gate(ctx context.Context, v Validator, current, overrides ir.IRObject) (merged ir.IRObject, errs ir.ErrorMap, err error) {
	merged = ir.DeepMerge(current, overrides)
	if v == nil {
		return merged, nil, nil
	}
	errs, err = v.Validate(ctx, merged)
	if err != nil {
		return merged, nil, err
	}
	if errs.Empty() {
		return merged, nil, nil
	}
	return merged, errs, nil
}
