package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

// ErrNoPendingSave is returned by Next when ctx ends before a save arrives.
var ErrNoPendingSave = errors.New("no pending save")

// PendingSave is a persistence call held open by ScriptedPersistence until
// the test responds to it or fails it.
type PendingSave struct {
	Params engine.SaveParams

	once  sync.Once
	reply chan scriptedReply
}

type scriptedReply struct {
	values ir.IRObject
	err    error
}

// Respond completes the call with canonical values. Nil values means the
// save succeeded without rehydration.
func (p *PendingSave) Respond(values ir.IRObject) {
	if values != nil {
		values = ir.CloneObject(values)
	}
	p.once.Do(func() {
		p.reply <- scriptedReply{values: values}
	})
}

// Fail completes the call with err.
func (p *PendingSave) Fail(err error) {
	p.once.Do(func() {
		p.reply <- scriptedReply{err: err}
	})
}

// ScriptedPersistence is an engine.Persistence whose every OnSave blocks
// until the test picks the call up with Next and answers it. This lets a
// test edit the form while a save is in flight.
//
// Thread-safety: safe for concurrent use.
type ScriptedPersistence struct {
	mu      sync.Mutex
	calls   []engine.SaveParams
	pending chan *PendingSave
}

var _ engine.Persistence = (*ScriptedPersistence)(nil)

// NewScriptedPersistence creates a persistence double with room for
// buffer outstanding calls before OnSave blocks on hand-off.
func NewScriptedPersistence(buffer int) *ScriptedPersistence {
	if buffer < 1 {
		buffer = 1
	}
	return &ScriptedPersistence{pending: make(chan *PendingSave, buffer)}
}

// OnSave records the call and blocks until it is answered or ctx ends.
func (s *ScriptedPersistence) OnSave(ctx context.Context, params engine.SaveParams) (ir.IRObject, error) {
	s.mu.Lock()
	s.calls = append(s.calls, params)
	s.mu.Unlock()

	p := &PendingSave{Params: params, reply: make(chan scriptedReply, 1)}
	select {
	case s.pending <- p:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-p.reply:
		return r.values, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next waits for the next call to OnSave and returns it unanswered.
func (s *ScriptedPersistence) Next(ctx context.Context) (*PendingSave, error) {
	select {
	case p := <-s.pending:
		return p, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoPendingSave, ctx.Err())
	}
}

// Pending returns the channel on which calls arrive, for callers that need
// to select on it together with other events.
func (s *ScriptedPersistence) Pending() <-chan *PendingSave {
	return s.pending
}

// Calls returns every SaveParams received so far, in arrival order.
func (s *ScriptedPersistence) Calls() []engine.SaveParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.SaveParams, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of OnSave calls received so far.
func (s *ScriptedPersistence) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
