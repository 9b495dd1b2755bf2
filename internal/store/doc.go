// Package store provides SQLite-backed persistence for vmform documents.
//
// The store keeps two tables:
//   - documents: the current canonical values of each form document
//   - save_cycles: an append-only log of every save cycle that reached
//     persistence, with its merged values and override payload
//
// Persister adapts a Store to engine.Persistence for one document.
//
// # Critical Patterns
//
// Idempotent writes:
//   - A write whose values equal the stored values (same snapshot hash and
//     fingerprint) does not bump the revision
//   - save_cycles.id is the engine's cycle ID; replaying a cycle is a no-op
//
// Logical ordering:
//   - History queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//   - No timestamps are stored
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All values are stored as RFC 8785 canonical JSON produced by
// ir.MarshalCanonical.
package store
