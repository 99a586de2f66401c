// Package engine implements the single-writer dispatch loop.
//
// ARCHITECTURE:
//
// A Program supplies Init, Update and View. Runtime owns the model and
// processes one message at a time:
//
//  1. Dispatch enqueues a message (any goroutine)
//  2. Run dequeues it and calls Update(msg, model)
//  3. the new model is published to Snapshot and passed to View
//  4. the returned commands go to the scheduler
//  5. effects complete concurrently and Dispatch their outcome messages
//
// Update never blocks, sleeps or performs I/O. Anything effectful is a
// command. Because completions of independent commands arrive in any
// order, reducers guard against stale results with generation counters.
//
// DEFECTS:
//
// A message Update does not handle, or a panic inside Update or Init, is a
// *DefectError. Run stops on the first defect instead of continuing with a
// model that may be inconsistent.
//
// Step and Simulate run the reducer without a loop or scheduler; tests and
// the scenario harness use them to check determinism.
package engine
