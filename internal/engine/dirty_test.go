package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmform/internal/ir"
)

func TestIsDirtySinceLastSave(t *testing.T) {
	tests := []struct {
		name     string
		current  ir.IRObject
		snapshot ir.IRObject
		want     bool
	}{
		{"identical", article("A", "x"), article("A", "x"), false},
		{"independently built equal", ir.IRObject{"tags": ir.IRArray{ir.IRString("a")}}, ir.IRObject{"tags": ir.IRArray{ir.IRString("a")}}, false},
		{"scalar changed", article("B", "x"), article("A", "x"), true},
		{"field added", withID(article("A", "x"), "1"), article("A", "x"), true},
		{"field removed", ir.IRObject{"title": ir.IRString("A")}, article("A", "x"), true},
		{"array reordered", ir.IRObject{"tags": ir.IRArray{ir.IRString("b"), ir.IRString("a")}}, ir.IRObject{"tags": ir.IRArray{ir.IRString("a"), ir.IRString("b")}}, true},
		{"both empty", ir.IRObject{}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDirtySinceLastSave(tt.current, tt.snapshot))
		})
	}
}

func TestChangedPaths_LeafDiff(t *testing.T) {
	snapshot := ir.IRObject{
		"title": ir.IRString("A"),
		"image": ir.IRObject{"src": ir.IRString("a.png"), "alt": ir.IRString("")},
		"tags":  ir.IRArray{ir.IRString("go")},
	}
	current := ir.IRObject{
		"title": ir.IRString("A"),
		"image": ir.IRObject{"src": ir.IRString("b.png"), "alt": ir.IRString("")},
		"tags":  ir.IRArray{ir.IRString("go"), ir.IRString("forms")},
		"notes": ir.IRString("new"),
	}

	assert.Equal(t, []string{"image.src", "notes", "tags"}, ChangedPaths(current, snapshot))
}

func TestChangedPaths_RegisteredFields(t *testing.T) {
	snapshot := article("A", "x")
	current := ir.IRObject{"title": ir.IRString("B"), "extra": ir.IRString("e")}

	got := ChangedPaths(current, snapshot, "title", "body", "title", "missing")

	assert.Equal(t, []string{"body", "title"}, got)
}

func TestChangedPaths_Identical(t *testing.T) {
	assert.Empty(t, ChangedPaths(article("A", "x"), article("A", "x")))
	assert.Empty(t, ChangedPaths(article("A", "x"), article("A", "x"), "title"))
}

func TestFingerprint(t *testing.T) {
	a := ir.IRObject{"title": ir.IRString("A"), "body": ir.IRString("x")}
	b := ir.IRObject{"body": ir.IRString("x"), "title": ir.IRString("A")}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(article("B", "x")))
	assert.NotZero(t, Fingerprint(ir.IRObject{}))
}

func TestGate(t *testing.T) {
	current := article("A", "x")
	overrides := ir.IRObject{"title": ir.IRString("")}

	merged, errs, err := gate(context.Background(), nil, current, overrides)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, article("", "x"), merged)

	_, errs, err = gate(context.Background(), ValidatorFunc(rejectEmptyTitle), current, overrides)
	require.NoError(t, err)
	assert.Equal(t, ir.ErrorMap{"title": "required"}, errs)

	_, errs, err = gate(context.Background(), ValidatorFunc(func(context.Context, ir.IRObject) (ir.ErrorMap, error) {
		return ir.ErrorMap{}, nil
	}), current, overrides)
	require.NoError(t, err)
	assert.Nil(t, errs, "an empty error map is valid")

	boom := errors.New("boom")
	_, _, err = gate(context.Background(), ValidatorFunc(func(context.Context, ir.IRObject) (ir.ErrorMap, error) {
		return nil, boom
	}), current, overrides)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, article("A", "x"), current, "inputs are not mutated")
}

func TestSnapshotStore(t *testing.T) {
	values := article("A", "x")
	s := newSnapshotStore(values, NewClock())

	values["title"] = ir.IRString("mutated")
	assert.Equal(t, article("A", "x"), s.get().Values)
	assert.Equal(t, int64(1), s.get().Seq)

	snap := s.capture(article("B", "y"))
	assert.Equal(t, int64(2), snap.Seq)
	assert.Equal(t, ir.MustSnapshotHash(article("B", "y")), snap.Hash)

	clone := s.get().Clone()
	clone.Values["title"] = ir.IRString("mutated")
	assert.Equal(t, article("B", "y"), s.get().Values)
}
