// Package harness runs reconciliation scenarios against a real form and
// engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: edit_during_save
//	description: "An edit made while a save is in flight survives"
//	initial: { title: A, body: x }
//	form:
//	  registered_fields: [title, body]
//	  required: [slug]          # checked by the form on submit
//	engine:
//	  required: [title]         # checked by the validation gate
//	  schema: article.cue       # CUE schema, also used by the gate
//	  overlap: queue            # queue | reject | concurrent
//	steps:
//	  - save: {}
//	  - edit: { path: title, value: B }
//	  - respond: { values: { title: A, body: x, id: "42" } }
//	  - expect:
//	      values: { title: B, body: x, id: "42" }
//	      dirty: true
//	      outcome: reconciled
//	assertions:
//	  - type: trace_contains
//	    kind: reconciled
//	    changed: [title]
//
// # Steps
//
//   - edit: change one field (delete: true removes it)
//   - save, submit: start a cycle with optional overrides
//   - respond: answer the oldest pending persistence call with values,
//     with merge (deep-merged over what was sent), or with nothing
//   - fail: fail the oldest pending persistence call
//   - reset: reset the form, as an external reset would
//   - detach: detach the engine from the form
//   - expect: check values, dirty, pristine, state, outcome, errors,
//     submit_count, submit_failed, leave_guard, error
//
// Saves run on their own goroutine. Persistence is scripted, so every
// save stays in flight until a respond or fail step answers it and any
// edit in between lands mid-save.
//
// # Assertion Types
//
//   - trace_contains: an engine trace event of the kind occurs
//   - trace_order: kinds occur in the given relative order
//   - trace_count: a kind occurs exactly N times
//   - final_values: the final form values contain the expected subset
//
// # Deterministic Testing
//
// Cycle IDs come from engine.SequenceGenerator ("cycle-1", "cycle-2", ...)
// and snapshot seqs from testutil.DeterministicClock, so a scenario always
// produces the same trace. RunWithGolden compares that trace, the cycle
// outcomes and the final values, as canonical JSON, against
// testdata/golden/{name}.golden.
package harness
