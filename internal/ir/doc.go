// Package ir provides the value model shared by every vmform package.
//
// Form values are trees of IRValue: objects, arrays, strings, ints,
// floats, bools and null. The package has no internal imports so that the engine, the
// form substrate, the store and the harness can all depend on it.
//
// Key design constraints:
//   - Integral numbers are always IRInt; IRFloat holds the rest and encodes in the RFC 8785 number form
//   - Field paths are dot-separated object keys ("image.src"); a "." or backslash inside a key is escaped with a backslash (see JoinPath); arrays are leaves
//   - Values handed out by other packages are copies (see Clone); callers may mutate them freely
//   - All JSON tags use snake_case
package ir
