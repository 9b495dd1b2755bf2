package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func articleValues() IRObject {
	return IRObject{
		"id":    IRString("42"),
		"title": IRString("A"),
		"image": IRObject{
			"id":  IRString("img-1"),
			"src": IRString("a.png"),
		},
		"tags": IRArray{IRString("news")},
	}
}

func TestGetIn(t *testing.T) {
	obj := articleValues()

	v, ok := GetIn(obj, "image.src")
	assert.True(t, ok)
	assert.Equal(t, IRString("a.png"), v)

	v, ok = GetIn(obj, "image")
	assert.True(t, ok)
	assert.Equal(t, obj["image"], v)

	_, ok = GetIn(obj, "image.alt")
	assert.False(t, ok)

	// Arrays are leaves, never indexed into
	_, ok = GetIn(obj, "tags.0")
	assert.False(t, ok)

	_, ok = GetIn(obj, "")
	assert.False(t, ok)
}

func TestSetInCreatesIntermediateObjects(t *testing.T) {
	obj := IRObject{}
	SetIn(obj, "image.src", IRString("b.png"))

	assert.Equal(t, IRObject{"image": IRObject{"src": IRString("b.png")}}, obj)
}

func TestSetInReplacesScalarIntermediate(t *testing.T) {
	obj := IRObject{"image": IRString("legacy")}
	SetIn(obj, "image.src", IRString("b.png"))

	assert.Equal(t, IRObject{"image": IRObject{"src": IRString("b.png")}}, obj)
}

func TestDeleteIn(t *testing.T) {
	obj := articleValues()
	DeleteIn(obj, "image.src")
	DeleteIn(obj, "missing.path")

	assert.Equal(t, IRObject{"id": IRString("img-1")}, obj["image"])
}

func TestLeafPaths(t *testing.T) {
	obj := articleValues()
	obj["meta"] = IRObject{}

	assert.Equal(t, []string{"id", "image.id", "image.src", "meta", "tags", "title"}, LeafPaths(obj))
}

func TestDiffPaths(t *testing.T) {
	before := articleValues()
	after := articleValues()
	after["title"] = IRString("B")
	after["image"].(IRObject)["src"] = IRString("b.png")
	after["tags"] = IRArray{IRString("news"), IRString("sport")}
	delete(after, "id")
	after["body"] = IRString("new")

	assert.Equal(t, []string{"body", "id", "image.src", "tags", "title"}, DiffPaths(after, before))
	assert.Empty(t, DiffPaths(before, articleValues()))
}

func TestDiffPathsObjectVersusScalar(t *testing.T) {
	a := IRObject{"image": IRObject{"src": IRString("a")}}
	b := IRObject{"image": IRNull{}}

	assert.Equal(t, []string{"image"}, DiffPaths(a, b))
}

func TestJoinAndSplitPath(t *testing.T) {
	assert.Equal(t, "title", JoinPath("", "title"))
	assert.Equal(t, "image.src", JoinPath("image", "src"))
	assert.Equal(t, []string{"image", "src"}, SplitPath("image.src"))
	assert.Nil(t, SplitPath(""))
}

func TestJoinPathEscapesDottedKeys(t *testing.T) {
	tests := []struct {
		keys []string
		path string
	}{
		{[]string{"v1.2"}, `v1\.2`},
		{[]string{"release", "v1.2"}, `release.v1\.2`},
		{[]string{`a\b`}, `a\\b`},
		{[]string{"a.", ".b"}, `a\..\.b`},
		{[]string{"plain", "keys"}, "plain.keys"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.path, KeyPath(tt.keys...))
			assert.Equal(t, tt.keys, SplitPath(tt.path))
		})
	}
}

func TestDottedKeyStaysFlat(t *testing.T) {
	obj := IRObject{"v1.2": IRString("a"), "v1": IRObject{"2": IRString("nested")}}
	flat := KeyPath("v1.2")

	v, ok := GetIn(obj, flat)
	assert.True(t, ok)
	assert.Equal(t, IRString("a"), v)

	out := CloneObject(obj)
	SetIn(out, flat, IRString("typed"))
	assert.Equal(t, IRString("typed"), out["v1.2"])
	assert.Equal(t, IRObject{"2": IRString("nested")}, out["v1"])

	DeleteIn(out, flat)
	assert.NotContains(t, out, "v1.2")
	assert.Contains(t, out, "v1")

	assert.Equal(t, []string{"v1.2", `v1\.2`}, LeafPaths(obj))
	assert.Equal(t, []string{`v1\.2`}, DiffPaths(obj, IRObject{"v1.2": IRString("b"), "v1": IRObject{"2": IRString("nested")}}))
}
