// Package harness runs scripted sync scenarios against the offline engine.
//
// A scenario seeds an in-memory backend, then drives one engine through a
// list of steps: loads, writes, connectivity changes, app restarts and
// realtime pushes. Every run is deterministic. Record ids come from a fixed
// list and the cache lives in a fresh SQLite file, so the same scenario
// always produces the same trace and final state.
//
// # Scenario Format
//
//	name: offline_expense_replay
//	description: "Expenses written offline reach the backend on the next load"
//	user: user-1
//	ids: [exp-1]
//	seed:
//	  expenses:
//	    - { id: exp-0, title: Paper, amount: 12 }
//	steps:
//	  - op: load
//	  - op: offline
//	  - op: save
//	    collection: expenses
//	    record: { title: Fuel, amount: 45.5 }
//	    expect: { queued: true }
//	  - op: online
//	  - op: load
//	    expect: { replayed: 1, pending: 0 }
//	assertions:
//	  - type: outbox_count
//	    count: 0
//	  - type: remote
//	    collection: expenses
//	    id: exp-1
//	    expect: { title: Fuel }
//
// Seed rows are written in backend column names. Step records, patch
// payloads and assertion values use either naming.
//
// # Steps
//
//   - load, restart: fetch and replay, or rebuild the engine from the cache
//   - save, update, delete: optimistic writes through the engine
//   - offline, online: toggle backend reachability
//   - fail_fetch, restore_fetch: break or heal fetches of one collection
//   - remote_delete: remove a row behind the engine's back
//   - patch: deliver one realtime push and apply it
//
// # Assertion Types
//
//   - state, state_count, state_order: the engine's projection
//   - remote, remote_count: the backend's rows
//   - outbox_count: queued mutations
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON of the trace, final projection
// and outbox against testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
