// Package catalog is the reference application built on the dispatch
// loop: a stock catalogue whose items are event-sourced.
//
// Three layers share the package:
//
//   - the event-sourced store: Event, Codec, State and Apply, the pure
//     fold that replay uses to materialize the catalogue;
//   - the program: Model, Msg, Init and Update, which track the list and
//     detail fetches as RemoteData, apply edits optimistically and record
//     them through eventlog.append commands;
//   - the edges: Service executors for the ops Update emits, Render for
//     the terminal view and ParseCommand for line input.
//
// Update never touches the log or the cache; it only describes what the
// Service should do.
package catalog
