package engine

import (
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/vmform/internal/ir"
)

// IsDirtySinceLastSave reports whether current differs structurally from
// snapshot. Two objects built independently with the same content are
// equal.
func IsDirtySinceLastSave(current, snapshot ir.IRObject) bool {
	return !ir.Equal(current, snapshot)
}

// ChangedPaths returns the paths whose values differ between current and
// snapshot, sorted and without duplicates.
//
// With registered fields, only those paths are compared; a field present
// on one side only counts as changed. Without registered fields, every
// differing leaf is reported: objects are recursed into, arrays and
// scalars are compared as a whole.
func ChangedPaths(current, snapshot ir.IRObject, fields ...string) []string {
	if len(fields) == 0 {
		return ir.DiffPaths(current, snapshot)
	}

	var changed []string
	for _, f := range fields {
		a, aok := ir.GetIn(current, f)
		b, bok := ir.GetIn(snapshot, f)
		if aok != bok || (aok && !ir.Equal(a, b)) {
			changed = append(changed, f)
		}
	}
	slices.Sort(changed)
	return slices.Compact(changed)
}

// Fingerprint is a cheap 64-bit content hash of values: xxhash over the
// canonical JSON encoding. Equal values always share a fingerprint.
// It is not collision resistant; use ir.SnapshotHash for identity.
func Fingerprint(values ir.IRObject) uint64 {
	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}
