// Package form provides the form substrate consumed by the reconciliation engine.
//
// The substrate owns the authoritative in-progress values of one form. It
// tracks the initial values (for pristine/dirty), the registered field
// paths, and the submit-failed flag, and it notifies subscribers once per
// mutation or per batch of mutations.
//
// The engine depends on the API and Mutator interfaces only; Form is the
// in-memory implementation shipped with vmform.
package form

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/vmform/internal/ir"
)

// API is the surface of a form substrate that the engine consumes.
//
// Values returned by API methods are copies; mutating them does not
// affect the form.
type API interface {
	// Values returns a copy of the current values.
	Values() ir.IRObject

	// Pristine reports whether the current values equal the initial values.
	Pristine() bool

	// SubmitFailed reports whether the most recent Submit found validation errors.
	SubmitFailed() bool

	// Batch runs fn with exclusive access to the form. Every mutation made
	// through the Mutator is applied atomically and produces exactly one
	// notification to subscribers after fn returns.
	Batch(fn func(m Mutator))

	// Change sets a single field. Equivalent to a one-call Batch.
	Change(path string, value ir.IRValue)

	// Submit validates the current values and, if they are valid, hands
	// them to the submit handler.
	Submit(ctx context.Context) error

	// Subscribe registers fn to be called after every committed mutation.
	// The returned function removes the subscription.
	Subscribe(fn func()) (unsubscribe func())
}

// Mutator is the view of the form available inside a Batch.
type Mutator interface {
	// Values returns a copy of the values as they stand inside the batch.
	Values() ir.IRObject

	// RegisteredFields returns the registered field paths in sorted order.
	RegisteredFields() []string

	// SubmitFailed reports the submit-failed flag as it stands inside the batch.
	SubmitFailed() bool

	// Change sets the value at path. A nil value removes the field.
	Change(path string, value ir.IRValue)

	// Reset re-initializes the form: values and initial values both become
	// a copy of values, and the submit-failed flag is cleared.
	Reset(values ir.IRObject)
}

// SubmitHandler receives the values of a valid submission.
type SubmitHandler func(ctx context.Context, values ir.IRObject) error

// Validator checks values on submit. A non-empty ErrorMap marks the
// submission as failed.
type Validator func(ctx context.Context, values ir.IRObject) (ir.ErrorMap, error)

// Option configures a Form.
type Option func(*Form)

// WithRegisteredFields registers field paths, as rendered inputs would.
func WithRegisteredFields(paths ...string) Option {
	return func(f *Form) {
		for _, p := range paths {
			f.fields[p] = struct{}{}
		}
	}
}

// WithSubmitHandler sets the handler invoked by a valid Submit.
func WithSubmitHandler(h SubmitHandler) Option {
	return func(f *Form) {
		f.onSubmit = h
	}
}

// WithValidator sets the validator run by Submit.
func WithValidator(v Validator) Option {
	return func(f *Form) {
		f.validate = v
	}
}

// Form is an in-memory form substrate. It is safe for concurrent use.
type Form struct {
	mu           sync.Mutex
	values       ir.IRObject
	initial      ir.IRObject
	fields       map[string]struct{}
	submitFailed bool
	submitErrors ir.ErrorMap
	submitCount  int

	onSubmit SubmitHandler
	validate Validator

	subMu  sync.Mutex
	subs   map[int]func()
	nextID int
}

var _ API = (*Form)(nil)

// New creates a form holding a copy of initial.
func New(initial ir.IRObject, opts ...Option) *Form {
	f := &Form{
		values:  ir.CloneObject(initial),
		initial: ir.CloneObject(initial),
		fields:  make(map[string]struct{}),
		subs:    make(map[int]func()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Values returns a copy of the current values.
func (f *Form) Values() ir.IRObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ir.CloneObject(f.values)
}

// InitialValues returns a copy of the values the form was last reset to.
func (f *Form) InitialValues() ir.IRObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ir.CloneObject(f.initial)
}

// Pristine reports whether the current values equal the initial values.
func (f *Form) Pristine() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ir.Equal(f.values, f.initial)
}

// Dirty is the negation of Pristine.
func (f *Form) Dirty() bool {
	return !f.Pristine()
}

// DirtyFields returns the paths whose values differ from the initial values.
func (f *Form) DirtyFields() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ir.DiffPaths(f.values, f.initial)
}

// SubmitFailed reports whether the most recent Submit found validation errors.
func (f *Form) SubmitFailed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitFailed
}

// SubmitErrors returns the validation errors of the most recent Submit.
func (f *Form) SubmitErrors() ir.ErrorMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitErrors.Clone()
}

// SubmitCount returns how many times Submit has been called.
func (f *Form) SubmitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCount
}

// RegisterField adds a field path to the registry.
func (f *Form) RegisterField(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[path] = struct{}{}
}

// RegisteredFields returns the registered field paths in sorted order.
func (f *Form) RegisteredFields() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registeredFieldsLocked()
}

func (f *Form) registeredFieldsLocked() []string {
	paths := make([]string, 0, len(f.fields))
	for p := range f.fields {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Batch runs fn holding the form lock; subscribers are notified once afterwards.
// fn must not call back into the Form itself, only into the Mutator.
func (f *Form) Batch(fn func(m Mutator)) {
	f.mu.Lock()
	tx := &batch{form: f}
	fn(tx)
	changed := tx.mutated
	f.mu.Unlock()

	if changed {
		f.notify()
	}
}

// Change sets a single field and notifies subscribers.
func (f *Form) Change(path string, value ir.IRValue) {
	f.Batch(func(m Mutator) {
		m.Change(path, value)
	})
}

// Reset re-initializes the form with values and notifies subscribers.
func (f *Form) Reset(values ir.IRObject) {
	f.Batch(func(m Mutator) {
		m.Reset(values)
	})
}

// Submit validates the current values and hands valid values to the
// submit handler. Validation errors set the submit-failed flag and are
// not returned as an error; handler and validator errors are.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	f.submitCount++
	values := ir.CloneObject(f.values)
	validate, onSubmit := f.validate, f.onSubmit
	f.mu.Unlock()

	var errs ir.ErrorMap
	if validate != nil {
		var err error
		errs, err = validate(ctx, values)
		if err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.submitFailed = !errs.Empty()
	f.submitErrors = errs.Clone()
	f.mu.Unlock()
	f.notify()

	if !errs.Empty() || onSubmit == nil {
		return nil
	}
	return onSubmit(ctx, values)
}

// Subscribe registers fn to be called after every committed mutation.
// Callbacks run on the goroutine that made the mutation, outside the form lock.
func (f *Form) Subscribe(fn func()) (unsubscribe func()) {
	f.subMu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.subMu.Unlock()

	return func() {
		f.subMu.Lock()
		delete(f.subs, id)
		f.subMu.Unlock()
	}
}

func (f *Form) notify() {
	f.subMu.Lock()
	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.subs[id])
	}
	f.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// batch is the Mutator handed to Batch callbacks. The form lock is held
// for its whole lifetime.
type batch struct {
	form    *Form
	mutated bool
}

func (b *batch) Values() ir.IRObject {
	return ir.CloneObject(b.form.values)
}

func (b *batch) RegisteredFields() []string {
	return b.form.registeredFieldsLocked()
}

func (b *batch) SubmitFailed() bool {
	return b.form.submitFailed
}

func (b *batch) Change(path string, value ir.IRValue) {
	if value == nil {
		ir.DeleteIn(b.form.values, path)
	} else {
		ir.SetIn(b.form.values, path, ir.Clone(value))
	}
	b.mutated = true
}

func (b *batch) Reset(values ir.IRObject) {
	b.form.values = ir.CloneObject(values)
	b.form.initial = ir.CloneObject(values)
	b.form.submitFailed = false
	b.form.submitErrors = nil
	b.mutated = true
}
