// Package harness runs catalogue scenarios deterministically.
//
// A scenario seeds the event log, dispatches intents by name and settles
// the commands they produce against the real catalogue executors, one at
// a time and in FIFO order. Delayed commands run after everything already
// queued, so the same scenario always yields the same trace.
//
// # Scenario Format
//
//	name: add_then_fail
//	description: "an add rejected by storage is compensated"
//	seed:
//	  - kind: item_added
//	    payload: { id: a1, name: bolt, qty: 10 }
//	steps:
//	  - settle: true
//	  - fail_op: eventlog.append
//	  - dispatch: add_item
//	    args: { id: a2, name: nut, qty: 4 }
//	  - settle: true
//	assertions:
//	  - type: model
//	    path: items.value
//	    length: 1
//	  - type: commands_contain
//	    op: ui.notify
//	    args: { level: error }
//	  - type: events_count
//	    count: 1
//
// # Assertion Types
//
//   - model: the value at a dotted path of the final model equals expect,
//     or has length elements
//   - commands_contain: some emitted op has the given name and args (subset)
//   - commands_count: an op was emitted exactly count times
//   - events_count: the log holds exactly count records
//
// Traces are compared against golden files with RunWithGolden.
package harness
