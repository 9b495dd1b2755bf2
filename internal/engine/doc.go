// Package engine implements the vmform auto-save reconciliation engine.
//
// The engine sits between a form substrate (package form) and an
// asynchronous persistence collaborator. The user keeps editing while a
// save is in flight; when the save returns canonical values the engine
// merges them with whatever the user typed in the meantime.
//
// ARCHITECTURE:
//
// Save cycle:
// 1. Overlap policy admits the cycle (queue, reject or concurrent)
// 2. Validation gate checks DeepMerge(current, overrides)
// 3. Snapshot of the current values is captured, state becomes saving
// 4. Persistence.OnSave is called on the caller's goroutine
// 5. Canonical values returned ⇒ reconciliation, otherwise back to idle
//
// Reconciliation:
// Runs inside one form.Batch so no user edit interleaves and subscribers
// see a single notification. The form is reset to the canonical values
// and every path the user changed since the snapshot is re-applied on top.
// If the last submission had failed, the override payload is re-applied
// and the form is submitted again once the batch commits.
//
// Locking:
// The persistence call never holds an engine lock. Engine state is
// guarded by a short-lived mutex; reconciliations are serialised by a
// second mutex held across the form batch. The form change subscription
// only takes the state mutex, so a form notification can never deadlock
// against a running reconciliation.
//
// CRITICAL PATTERNS:
//
// Logical clock: snapshots are stamped with a monotonic seq from Clock.
// Wall-clock time is never used for ordering.
//
// Response-time reads: reconciliation reads the form values at the moment
// the response is applied, never a copy taken when the save started.
package engine
