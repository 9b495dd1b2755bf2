package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

type onSaveResult struct {
	values ir.IRObject
	err    error
}

func startSave(p *ScriptedPersistence, params engine.SaveParams) <-chan onSaveResult {
	done := make(chan onSaveResult, 1)
	go func() {
		v, err := p.OnSave(context.Background(), params)
		done <- onSaveResult{values: v, err: err}
	}()
	return done
}

func TestScriptedPersistence_Respond(t *testing.T) {
	p := NewScriptedPersistence(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := startSave(p, engine.SaveParams{CycleID: "cycle-1"})

	pending, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cycle-1", pending.Params.CycleID)

	pending.Respond(ir.IRObject{"id": ir.IRString("42")})
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, ir.IRObject{"id": ir.IRString("42")}, got.values)
	assert.Equal(t, 1, p.CallCount())
}

func TestScriptedPersistence_RespondNil(t *testing.T) {
	p := NewScriptedPersistence(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := startSave(p, engine.SaveParams{CycleID: "cycle-1"})
	pending, err := p.Next(ctx)
	require.NoError(t, err)

	pending.Respond(nil)
	got := <-done
	require.NoError(t, got.err)
	assert.Nil(t, got.values)
}

func TestScriptedPersistence_Fail(t *testing.T) {
	p := NewScriptedPersistence(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := startSave(p, engine.SaveParams{CycleID: "cycle-1"})
	pending, err := p.Next(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	pending.Fail(boom)
	pending.Respond(ir.IRObject{})

	got := <-done
	assert.ErrorIs(t, got.err, boom)
}

func TestScriptedPersistence_NextTimesOut(t *testing.T) {
	p := NewScriptedPersistence(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Next(ctx)
	assert.ErrorIs(t, err, ErrNoPendingSave)
}

func TestScriptedPersistence_OnSaveHonoursContext(t *testing.T) {
	p := NewScriptedPersistence(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.OnSave(ctx, engine.SaveParams{CycleID: "cycle-1"})
		done <- err
	}()

	_, err := p.Next(context.Background())
	require.NoError(t, err)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScriptedPersistence_CallsInOrder(t *testing.T) {
	p := NewScriptedPersistence(2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first := startSave(p, engine.SaveParams{CycleID: "cycle-1"})
	pending, err := p.Next(ctx)
	require.NoError(t, err)
	pending.Respond(nil)
	<-first

	second := startSave(p, engine.SaveParams{CycleID: "cycle-2"})
	pending, err = p.Next(ctx)
	require.NoError(t, err)
	pending.Respond(nil)
	<-second

	calls := p.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "cycle-1", calls[0].CycleID)
	assert.Equal(t, "cycle-2", calls[1].CycleID)
}
