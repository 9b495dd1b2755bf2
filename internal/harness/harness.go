package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/form"
	"github.com/roach88/vmform/internal/ir"
	"github.com/roach88/vmform/internal/testutil"
	"github.com/roach88/vmform/internal/validate"
)

// DefaultStepTimeout bounds how long a step waits for a cycle to reach
// persistence or to finish.
const DefaultStepTimeout = 5 * time.Second

// MessageRequired is the error reported for an empty required field.
const MessageRequired = "required"

// Option configures a scenario run.
type Option func(*Harness)

// WithStepTimeout overrides DefaultStepTimeout.
func WithStepTimeout(d time.Duration) Option {
	return func(h *Harness) {
		h.timeout = d
	}
}

// WithLogger sets the logger handed to the engine and used for step logs.
// Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Harness runs one scenario against a real form and engine.
//
// Persistence is scripted: every save blocks in OnSave until a respond or
// fail step answers it, so edits issued in between land while the cycle is
// in flight. Cycle IDs and snapshot seqs are deterministic.
type Harness struct {
	form    *form.Form
	engine  *engine.Engine
	persist *testutil.ScriptedPersistence
	clock   *testutil.DeterministicClock
	trace   *engine.Recorder
	policy  engine.OverlapPolicy
	logger  *slog.Logger
	timeout time.Duration

	// ops holds the unfinished save and submit steps in start order.
	ops    []*operation
	result *Result
}

type operation struct {
	step    int
	kind    string
	done    chan opResult
	pending *testutil.PendingSave
	queued  bool
}

type opResult struct {
	res engine.SaveResult
	err error
}

// Run executes a scenario and returns the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext executes a scenario.
//
// Execution flow:
// 1. Build the form, validators and engine from the scenario config
// 2. Execute steps in order
// 3. Cancel whatever is still in flight
// 4. Evaluate assertions against the trace and final values
//
// Expectation and assertion mismatches are reported in the result. The
// error result is for scenarios that cannot be executed.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		persist: testutil.NewScriptedPersistence(8),
		clock:   testutil.NewDeterministicClock(),
		trace:   &engine.Recorder{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultStepTimeout,
		result:  NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.setup(scenario); err != nil {
		return nil, fmt.Errorf("failed to set up scenario %s: %w", scenario.Name, err)
	}
	defer h.engine.Detach()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, step := range scenario.Steps {
		if err := h.execute(runCtx, i, step); err != nil {
			h.abandon(cancel)
			return nil, err
		}
	}

	h.result.Final = h.form.Values()
	h.result.Trace = h.trace.Events()
	h.abandon(cancel)

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) setup(s *Scenario) error {
	initial, err := ir.ObjectFromGo(s.Initial)
	if err != nil {
		return fmt.Errorf("initial: %w", err)
	}

	var formOpts []form.Option
	if len(s.Form.RegisteredFields) > 0 {
		formOpts = append(formOpts, form.WithRegisteredFields(s.Form.RegisteredFields...))
	}
	if len(s.Form.Required) > 0 {
		formOpts = append(formOpts, form.WithValidator(requiredValidator(s.Form.Required)))
	}
	h.form = form.New(initial, formOpts...)

	h.policy, err = engine.ParseOverlapPolicy(s.Engine.Overlap)
	if err != nil {
		return err
	}

	engineOpts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithClock(h.clock),
		engine.WithIDGenerator(engine.NewSequenceGenerator("cycle")),
		engine.WithTracer(h.trace),
		engine.WithOverlapPolicy(h.policy),
		engine.WithDisabled(s.Engine.Disabled),
	}
	v, err := gateValidator(s.Engine)
	if err != nil {
		return err
	}
	if v != nil {
		engineOpts = append(engineOpts, engine.WithValidator(v))
	}
	h.engine = engine.New(h.form, h.persist, engineOpts...)
	return nil
}

// gateValidator combines the required-field check and the CUE schema.
// A required-field message wins over a schema message for the same path.
func gateValidator(cfg EngineConfig) (engine.Validator, error) {
	var schema *validate.Schema
	if cfg.Schema != "" {
		var err error
		schema, err = validate.LoadSchema(cfg.Schema)
		if err != nil {
			return nil, err
		}
	}
	if schema == nil && len(cfg.Required) == 0 {
		return nil, nil
	}

	required := requiredValidator(cfg.Required)
	return engine.ValidatorFunc(func(ctx context.Context, values ir.IRObject) (ir.ErrorMap, error) {
		errs := ir.ErrorMap{}
		if schema != nil {
			schemaErrs, err := schema.Validate(ctx, values)
			if err != nil {
				return nil, err
			}
			maps.Copy(errs, schemaErrs)
		}
		requiredErrs, _ := required(ctx, values)
		maps.Copy(errs, requiredErrs)
		if errs.Empty() {
			return nil, nil
		}
		return errs, nil
	}), nil
}

// requiredValidator reports every path that is missing, null or an empty
// string.
func requiredValidator(paths []string) func(context.Context, ir.IRObject) (ir.ErrorMap, error) {
	return func(_ context.Context, values ir.IRObject) (ir.ErrorMap, error) {
		var errs ir.ErrorMap
		for _, p := range paths {
			v, ok := ir.GetIn(values, p)
			if ok && !ir.Equal(v, ir.IRNull{}) && !ir.Equal(v, ir.IRString("")) {
				continue
			}
			if errs == nil {
				errs = ir.ErrorMap{}
			}
			errs[p] = MessageRequired
		}
		return errs, nil
	}
}

func (h *Harness) execute(ctx context.Context, i int, step Step) error {
	kind := step.Kind()
	h.logger.Debug("scenario step", "step", i, "kind", kind)

	var err error
	switch kind {
	case StepEdit:
		err = h.edit(step.Edit)
	case StepSave:
		err = h.start(ctx, i, StepSave, step.Save)
	case StepSubmit:
		err = h.start(ctx, i, StepSubmit, step.Submit)
	case StepRespond:
		err = h.respond(ctx, step.Respond)
	case StepFail:
		err = h.answer(ctx, func(p *testutil.PendingSave) error {
			p.Fail(errors.New(step.Fail.Message))
			return nil
		})
	case StepReset:
		var values ir.IRObject
		values, err = ir.ObjectFromGo(step.Reset.Values)
		if err == nil {
			h.form.Reset(values)
		}
	case StepDetach:
		h.engine.Detach()
	case StepExpect:
		for _, msg := range h.check(step.Expect) {
			h.result.AddError(fmt.Sprintf("step %d: %s", i, msg))
		}
	default:
		err = fmt.Errorf("exactly one action must be set")
	}
	if err != nil {
		return &StepError{Step: i, Kind: kind, Err: err}
	}
	return nil
}

func (h *Harness) edit(step *EditStep) error {
	if step.Delete {
		h.form.Change(step.Path, nil)
		return nil
	}
	v, err := ir.FromGo(step.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	h.form.Change(step.Path, v)
	return nil
}

// start launches a save or submit on its own goroutine. Under the queue
// policy a cycle started behind an unfinished one waits for it, so it is
// settled only once its predecessors have finished.
func (h *Harness) start(ctx context.Context, i int, kind string, step *SaveStep) error {
	overrides, err := ir.ObjectFromGo(step.Overrides)
	if err != nil {
		return fmt.Errorf("overrides: %w", err)
	}

	op := &operation{step: i, kind: kind, done: make(chan opResult, 1)}
	op.queued = h.policy == engine.OverlapQueue && len(h.ops) > 0
	h.ops = append(h.ops, op)

	go func() {
		var r opResult
		if kind == StepSubmit {
			r.res, r.err = h.engine.Submit(ctx, overrides)
		} else {
			r.res, r.err = h.engine.Save(ctx, overrides)
		}
		op.done <- r
	}()

	if op.queued {
		return nil
	}
	return h.settle(op)
}

// settle waits until op has either reached persistence or finished.
func (h *Harness) settle(op *operation) error {
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case p := <-h.persist.Pending():
		op.pending = p
	case r := <-op.done:
		h.finish(op, r)
	case <-timer.C:
		return fmt.Errorf("%s did not reach persistence or finish within %s", op.kind, h.timeout)
	}
	return nil
}

func (h *Harness) respond(ctx context.Context, step *RespondStep) error {
	return h.answer(ctx, func(p *testutil.PendingSave) error {
		switch {
		case step.Values != nil:
			values, err := ir.ObjectFromGo(step.Values)
			if err != nil {
				return fmt.Errorf("values: %w", err)
			}
			p.Respond(values)
		case step.Merge != nil:
			merge, err := ir.ObjectFromGo(step.Merge)
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			p.Respond(ir.DeepMerge(p.Params.Merged, merge))
		default:
			p.Respond(nil)
		}
		return nil
	})
}

// answer completes the oldest cycle waiting in persistence, waits for it
// to finish, then settles any cycles that were queued behind it.
func (h *Harness) answer(ctx context.Context, reply func(*testutil.PendingSave) error) error {
	idx := slices.IndexFunc(h.ops, func(op *operation) bool { return op.pending != nil })
	if idx < 0 {
		return fmt.Errorf("no save is waiting for persistence")
	}
	op := h.ops[idx]
	if err := reply(op.pending); err != nil {
		return err
	}
	op.pending = nil

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	select {
	case r := <-op.done:
		h.finish(op, r)
	case <-timer.C:
		return fmt.Errorf("%s from step %d did not finish within %s", op.kind, op.step, h.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, next := range slices.Clone(h.ops) {
		if !next.queued {
			continue
		}
		next.queued = false
		if err := h.settle(next); err != nil {
			return err
		}
		if next.pending != nil {
			break
		}
	}
	return nil
}

func (h *Harness) finish(op *operation, r opResult) {
	h.ops = slices.DeleteFunc(h.ops, func(o *operation) bool { return o == op })

	rec := CycleRecord{
		Step:        op.step,
		Op:          op.kind,
		CycleID:     r.res.CycleID,
		Outcome:     r.res.Outcome,
		Preserved:   r.res.Preserved,
		Resubmitted: r.res.Resubmitted,
	}
	if r.err != nil {
		rec.Error = r.err.Error()
	}
	h.result.Cycles = append(h.result.Cycles, rec)

	h.logger.Debug("cycle finished",
		"step", op.step,
		"op", op.kind,
		"cycle_id", rec.CycleID,
		"outcome", rec.Outcome,
		"error", rec.Error,
	)
}

// abandon cancels every unfinished cycle and waits for it to return.
// Each one is reported as a failure: a scenario must answer what it starts.
func (h *Harness) abandon(cancel context.CancelFunc) {
	if len(h.ops) == 0 {
		return
	}
	for _, op := range h.ops {
		h.result.AddError(fmt.Sprintf("step %d: %s still in flight at end of scenario", op.step, op.kind))
	}
	cancel()

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	for _, op := range slices.Clone(h.ops) {
		select {
		case r := <-op.done:
			h.finish(op, r)
		case <-timer.C:
			return
		}
	}
}

// check compares engine and form state against an expect step.
func (h *Harness) check(want *ExpectStep) []string {
	var errs []string
	mismatch := func(what string, expected, actual any) {
		errs = append(errs, fmt.Sprintf("%s: expected %v, got %v", what, expected, actual))
	}

	if want.Values != nil {
		expected, err := ir.ObjectFromGo(want.Values)
		if err != nil {
			errs = append(errs, fmt.Sprintf("values: %v", err))
		} else if got := h.form.Values(); !ir.Equal(got, expected) {
			mismatch("values", canonicalString(expected), canonicalString(got))
		}
	}
	if want.Dirty != nil {
		if got := h.engine.DirtySinceLastSave(); got != *want.Dirty {
			mismatch("dirty", *want.Dirty, got)
		}
	}
	if want.Pristine != nil {
		if got := h.form.Pristine(); got != *want.Pristine {
			mismatch("pristine", *want.Pristine, got)
		}
	}
	if want.State != "" {
		if got := h.engine.State().String(); got != want.State {
			mismatch("state", want.State, got)
		}
	}
	if want.SubmitCount != nil {
		if got := h.form.SubmitCount(); got != *want.SubmitCount {
			mismatch("submit_count", *want.SubmitCount, got)
		}
	}
	if want.SubmitFailed != nil {
		if got := h.form.SubmitFailed(); got != *want.SubmitFailed {
			mismatch("submit_failed", *want.SubmitFailed, got)
		}
	}
	if want.LeaveGuard != nil {
		if got := h.engine.LeaveGuard(); got != *want.LeaveGuard {
			mismatch("leave_guard", *want.LeaveGuard, got)
		}
	}

	got := h.engine.LastValidationErrors()
	if want.Errors != nil && !maps.Equal(map[string]string(got), want.Errors) {
		mismatch("errors", want.Errors, map[string]string(got))
	}
	if want.NoErrors && !got.Empty() {
		mismatch("errors", "none", map[string]string(got))
	}

	if want.Outcome != "" || want.Error != "" {
		last, ok := h.result.LastCycle()
		switch {
		case !ok:
			errs = append(errs, "outcome: no cycle has finished")
		default:
			if want.Outcome != "" && last.Outcome.String() != want.Outcome {
				mismatch("outcome", want.Outcome, last.Outcome.String())
			}
			if want.Error != "" && !strings.Contains(last.Error, want.Error) {
				mismatch("error", fmt.Sprintf("containing %q", want.Error), fmt.Sprintf("%q", last.Error))
			}
		}
	}
	return errs
}

func canonicalString(v ir.IRObject) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
