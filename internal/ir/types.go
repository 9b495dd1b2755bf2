package ir

import "slices"

// ErrorMap maps field paths to validation messages.
// An empty (or nil) map means the values are valid.
type ErrorMap map[string]string

// Empty reports whether the map carries no errors.
func (m ErrorMap) Empty() bool {
	return len(m) == 0
}

// Paths returns the field paths with errors in sorted order.
func (m ErrorMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Clone returns an independent copy of the map. Nil stays nil.
func (m ErrorMap) Clone() ErrorMap {
	if m == nil {
		return nil
	}
	out := make(ErrorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
