package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotHashDeterminism(t *testing.T) {
	a := IRObject{"title": IRString("A"), "body": IRString("x")}
	b := IRObject{"body": IRString("x"), "title": IRString("A")}

	ha, err := SnapshotHash(a)
	require.NoError(t, err)
	hb, err := SnapshotHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestSnapshotHashChangesWithContent(t *testing.T) {
	a := MustSnapshotHash(IRObject{"title": IRString("A")})
	b := MustSnapshotHash(IRObject{"title": IRString("B")})

	assert.NotEqual(t, a, b)
}

func TestSnapshotHashDomainSeparation(t *testing.T) {
	values := IRObject{"title": IRString("A")}
	canonical, err := MarshalCanonical(values)
	require.NoError(t, err)

	assert.Equal(t, hashWithDomain(DomainSnapshot, canonical), MustSnapshotHash(values))
	assert.NotEqual(t, hashWithDomain(DomainPayload, canonical), MustSnapshotHash(values))
}

func TestPayloadHashIncludesOverrides(t *testing.T) {
	merged := IRObject{"title": IRString("C")}

	h1, err := PayloadHash(merged, IRObject{})
	require.NoError(t, err)
	h2, err := PayloadHash(merged, IRObject{"title": IRString("C")})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestSnapshotHashNumbers(t *testing.T) {
	decimal, err := SnapshotHash(IRObject{"price": IRFloat(9.99)})
	require.NoError(t, err)
	other, err := SnapshotHash(IRObject{"price": IRFloat(9.98)})
	require.NoError(t, err)
	assert.NotEqual(t, decimal, other)

	// 2.0 decodes as 2, so the stored form and the typed form hash alike.
	fromJSON, err := UnmarshalIRObject([]byte(`{"qty":2.0}`))
	require.NoError(t, err)
	h1, err := SnapshotHash(fromJSON)
	require.NoError(t, err)
	h2, err := SnapshotHash(IRObject{"qty": IRInt(2)})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestErrorMap(t *testing.T) {
	var empty ErrorMap
	assert.True(t, empty.Empty())
	assert.Nil(t, empty.Clone())

	m := ErrorMap{"title": "required", "body": "too long"}
	assert.False(t, m.Empty())
	assert.Equal(t, []string{"body", "title"}, m.Paths())

	c := m.Clone()
	c["title"] = "changed"
	assert.Equal(t, "required", m["title"])
}
