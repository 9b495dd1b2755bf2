package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

func TestWriteDocument_Create(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc, changed, err := s.WriteDocument(ctx, "doc-1", articleValues("A", "x"))
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, int64(1), doc.Revision)
	assert.Equal(t, ir.MustSnapshotHash(articleValues("A", "x")), doc.SnapshotHash)
	assert.Equal(t, engine.Fingerprint(articleValues("A", "x")), doc.Fingerprint)

	read, err := s.ReadDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc, read)
}

func TestWriteDocument_SameValuesKeepRevision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.WriteDocument(ctx, "doc-1", articleValues("A", "x"))
	require.NoError(t, err)

	doc, changed, err := s.WriteDocument(ctx, "doc-1", articleValues("A", "x"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(1), doc.Revision)

	doc, changed, err = s.WriteDocument(ctx, "doc-1", articleValues("B", "x"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(2), doc.Revision)
}

func TestWriteDocument_StripsReservedKeys(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	values := articleValues("A", "x")
	values[KeyID] = ir.IRString("forged")
	values[KeyRevision] = ir.IRInt(99)

	doc, _, err := s.WriteDocument(ctx, "doc-1", values)
	require.NoError(t, err)

	assert.Equal(t, articleValues("A", "x"), doc.Values)
	assert.Equal(t, int64(1), doc.Revision)
}

func TestWriteDocument_PreservesLargeIntegersAndNesting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	values := ir.IRObject{
		"count": ir.IRInt(9007199254740993),
		"image": ir.IRObject{"src": ir.IRString("a.png")},
		"tags":  ir.IRArray{ir.IRString("go"), ir.IRBool(true), ir.IRNull{}},
	}
	_, _, err := s.WriteDocument(ctx, "doc-1", values)
	require.NoError(t, err)

	doc, err := s.ReadDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, ir.Equal(values, doc.Values), "got %v", doc.Values)
}

func TestReadDocument_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadDocument(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDocument_Canonical(t *testing.T) {
	doc := Document{ID: "doc-1", Revision: 3, Values: articleValues("A", "x")}

	got := doc.Canonical()

	want := articleValues("A", "x")
	want[KeyID] = ir.IRString("doc-1")
	want[KeyRevision] = ir.IRInt(3)
	assert.Equal(t, want, got)
	assert.Equal(t, articleValues("A", "x"), doc.Values, "Canonical does not mutate the document")
}

func TestNewDocumentID(t *testing.T) {
	id := NewDocumentID()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFingerprintRoundTrip(t *testing.T) {
	for _, fp := range []uint64{0, 1, 1<<63 + 5, ^uint64(0)} {
		got, err := parseFingerprint(formatFingerprint(fp))
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	}
	assert.Len(t, formatFingerprint(1), 16)

	_, err := parseFingerprint("zz")
	assert.Error(t, err)
}
