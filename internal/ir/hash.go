package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for checksums. The version suffix allows a future
// algorithm change without ambiguity.
const (
	DomainRecord   = "stateloop/record/v1"
	DomainSnapshot = "stateloop/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The separator keeps domain and data boundaries unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum computes the integrity checksum of an event record. The
// timestamp is the record's RFC 3339 string; it is covered so a rewritten
// record is detected even when its payload is unchanged.
func Checksum(seq int64, kind string, payload Object, timestamp string) (string, error) {
	if payload == nil {
		payload = Object{}
	}
	obj := Object{
		"sequence":  Int(seq),
		"kind":      String(kind),
		"payload":   payload,
		"timestamp": String(timestamp),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Checksum: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainRecord, canonical), nil
}

// MustChecksum is like Checksum but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustChecksum(seq int64, kind string, payload Object, timestamp string) string {
	sum, err := Checksum(seq, kind, payload, timestamp)
	if err != nil {
		panic(err)
	}
	return sum
}

// SnapshotHash hashes an arbitrary canonical state document. Replay uses it
// to compare two folds for equality without comparing Go values.
func SnapshotHash(state Object) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}
