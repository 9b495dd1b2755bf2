package engine

import "github.com/roach88/vmform/internal/ir"

// Snapshot is the form values as they stood when the last save cycle
// started, or when the form last became pristine. It is the baseline the
// dirty calculator compares against. Snapshots are immutable; the store
// replaces them wholesale.
type Snapshot struct {
	// Values is a deep copy of the form values.
	Values ir.IRObject `json:"values"`

	// Hash is ir.SnapshotHash of Values.
	Hash string `json:"hash"`

	// Seq is the logical clock value at capture time.
	Seq int64 `json:"seq"`
}

// newSnapshot deep-copies values and stamps them.
func newSnapshot(values ir.IRObject, seq int64) Snapshot {
	v := ir.CloneObject(values)
	return Snapshot{
		Values: v,
		Hash:   ir.MustSnapshotHash(v),
		Seq:    seq,
	}
}

// Clone returns a copy whose Values can be modified freely.
func (s Snapshot) Clone() Snapshot {
	s.Values = ir.CloneObject(s.Values)
	return s
}

// snapshotStore holds the current snapshot. It is not safe for concurrent
// use on its own; the engine guards it with its state mutex.
type snapshotStore struct {
	current Snapshot
	clock   Sequencer
}

func newSnapshotStore(initial ir.IRObject, clock Sequencer) *snapshotStore {
	return &snapshotStore{
		current: newSnapshot(initial, clock.Next()),
		clock:   clock,
	}
}

// capture replaces the snapshot with a copy of values and returns it.
func (s *snapshotStore) capture(values ir.IRObject) Snapshot {
	s.current = newSnapshot(values, s.clock.Next())
	return s.current
}

// get returns the current snapshot. The caller must not modify Values.
func (s *snapshotStore) get() Snapshot {
	return s.current
}
