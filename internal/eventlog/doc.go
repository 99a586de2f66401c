// Package eventlog is the append-only event history and its replay.
//
// A Record is one committed fact: {sequence, kind, payload, timestamp,
// checksum}. Sequences start at 1 and are contiguous. Records are never
// rewritten, reordered or deleted.
//
// Replay is a left fold of a pure apply function over the decoded events,
// starting from an empty state. It never consults the timestamp. A gap, a
// checksum mismatch, a malformed record or an unknown kind is an
// *IntegrityError and stops replay; nothing is skipped.
//
// Backends implement Log: Memory and File here, SQLite in package store
// and bbolt in package boltlog. Every backend assigns sequence numbers
// under its own single-writer lock. Sharing one log between processes
// requires external synchronization.
package eventlog
