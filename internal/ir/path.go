package ir

import (
	"slices"
	"strings"
)

// PathSeparator separates object keys in a field path ("image.src").
const PathSeparator = "."

// pathEscape marks a literal separator or escape inside a key
// (key "v1.2" has the path `v1\.2`).
const pathEscape = '\\'

// SplitPath splits a field path into its object keys, undoing the
// escaping applied by JoinPath. An empty path yields nil.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	if !strings.ContainsRune(path, pathEscape) {
		return strings.Split(path, PathSeparator)
	}

	var (
		keys []string
		key  strings.Builder
	)
	for i := 0; i < len(path); i++ {
		switch c := path[i]; {
		case c == pathEscape && i+1 < len(path):
			i++
			key.WriteByte(path[i])
		case c == PathSeparator[0]:
			keys = append(keys, key.String())
			key.Reset()
		default:
			key.WriteByte(c)
		}
	}
	return append(keys, key.String())
}

// JoinPath appends key to a parent path. Separators and escapes inside
// key are escaped so that SplitPath returns key unchanged.
func JoinPath(parent, key string) string {
	key = escapeKey(key)
	if parent == "" {
		return key
	}
	return parent + PathSeparator + key
}

// KeyPath builds the path of nested keys.
func KeyPath(keys ...string) string {
	var path string
	for _, k := range keys {
		path = JoinPath(path, k)
	}
	return path
}

func escapeKey(key string) string {
	if !strings.ContainsAny(key, PathSeparator+string(pathEscape)) {
		return key
	}
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		if c := key[i]; c == pathEscape || c == PathSeparator[0] {
			b.WriteByte(pathEscape)
		}
		b.WriteByte(key[i])
	}
	return b.String()
}

// GetIn returns the value stored at path.
// The second result is false if any segment is missing or an intermediate
// value is not an object. Arrays are never indexed into.
func GetIn(obj IRObject, path string) (IRValue, bool) {
	keys := SplitPath(path)
	if len(keys) == 0 {
		return nil, false
	}

	cur := obj
	for i, k := range keys {
		v, ok := cur[k]
		if !ok {
			return nil, false
		}
		if i == len(keys)-1 {
			return v, true
		}
		next, ok := v.(IRObject)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// SetIn stores v at path, creating intermediate objects as needed.
// A non-object intermediate value is replaced by an object.
// obj is modified in place and must not be nil.
func SetIn(obj IRObject, path string, v IRValue) {
	keys := SplitPath(path)
	if len(keys) == 0 {
		return
	}

	cur := obj
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k].(IRObject)
		if !ok {
			next = IRObject{}
			cur[k] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = v
}

// DeleteIn removes the value stored at path. Missing paths are a no-op.
// Parent objects are left in place even when they become empty.
func DeleteIn(obj IRObject, path string) {
	keys := SplitPath(path)
	if len(keys) == 0 {
		return
	}

	cur := obj
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k].(IRObject)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, keys[len(keys)-1])
}

// LeafPaths returns the paths of every non-object value in obj, plus the
// paths of empty objects, in sorted order.
func LeafPaths(obj IRObject) []string {
	var paths []string
	collectLeafPaths(obj, "", &paths)
	slices.Sort(paths)
	return paths
}

func collectLeafPaths(obj IRObject, prefix string, out *[]string) {
	for k, v := range obj {
		p := JoinPath(prefix, k)
		if child, ok := v.(IRObject); ok && len(child) > 0 {
			collectLeafPaths(child, p, out)
			continue
		}
		*out = append(*out, p)
	}
}

// DiffPaths returns the paths at which a and b differ, in sorted order.
//
// Objects present on both sides are recursed into; everything else
// (scalars, arrays, an object on one side only) is compared atomically
// and reported at the shallowest differing path. A key present on one
// side only is a difference.
func DiffPaths(a, b IRObject) []string {
	var paths []string
	collectDiffPaths(a, b, "", &paths)
	slices.Sort(paths)
	return paths
}

func collectDiffPaths(a, b IRObject, prefix string, out *[]string) {
	for k, va := range a {
		p := JoinPath(prefix, k)
		vb, ok := b[k]
		if !ok {
			*out = append(*out, p)
			continue
		}
		oa, aIsObj := va.(IRObject)
		ob, bIsObj := vb.(IRObject)
		if aIsObj && bIsObj {
			collectDiffPaths(oa, ob, p, out)
			continue
		}
		if !Equal(va, vb) {
			*out = append(*out, p)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			*out = append(*out, JoinPath(prefix, k))
		}
	}
}
