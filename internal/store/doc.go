// Package store provides a SQLite-backed event log.
//
// Store implements eventlog.Log over a single append-only table:
//
//	events(seq INTEGER PRIMARY KEY, kind, payload, timestamp, checksum)
//
// Payloads are stored as canonical JSON text, so the stored bytes are the
// bytes the checksum was computed over.
//
// # Ordering
//
// The sequence column is the only ordering. Every read is ORDER BY seq
// ASC; timestamps are informational and never used to order or filter.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: SQLite allows a single writer
//
// The schema is versioned with PRAGMA user_version and migrated on Open.
package store
