// Package ir provides the payload value model shared by the event log,
// commands and scenario fixtures.
//
// ir imports nothing internal; every other package may import it.
//
// Key constraints:
//   - NO float types anywhere; numbers are int64
//   - persisted bytes always come from MarshalCanonical
//   - record checksums are domain-separated SHA-256 over canonical JSON
package ir
