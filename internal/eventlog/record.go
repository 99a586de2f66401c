package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/stateloop/internal/ir"
)

// Record is one persisted event.
type Record struct {
	Seq       int64     `json:"sequence"`
	Kind      string    `json:"kind"`
	Payload   ir.Object `json:"payload"`
	Timestamp string    `json:"timestamp"`
	Checksum  string    `json:"checksum"`
}

// TimeLayout is the timestamp format: RFC 3339 with nanoseconds, UTC.
const TimeLayout = time.RFC3339Nano

// NewRecord builds a sealed record. The payload must be canonically
// encodable (no floats, no nulls).
func NewRecord(seq int64, kind string, payload ir.Object, at time.Time) (Record, error) {
	if seq < 1 {
		return Record{}, fmt.Errorf("new record: sequence must be positive, got %d", seq)
	}
	if kind == "" {
		return Record{}, fmt.Errorf("new record: empty kind")
	}
	if payload == nil {
		payload = ir.Object{}
	}

	ts := at.UTC().Format(TimeLayout)
	sum, err := ir.Checksum(seq, kind, payload, ts)
	if err != nil {
		return Record{}, fmt.Errorf("new record %s: %w", kind, err)
	}
	return Record{
		Seq:       seq,
		Kind:      kind,
		Payload:   payload,
		Timestamp: ts,
		Checksum:  sum,
	}, nil
}

// Time parses the timestamp.
func (r Record) Time() (time.Time, error) {
	return time.Parse(TimeLayout, r.Timestamp)
}

// MarshalCanonical renders the record as one canonical JSON document,
// the form written to line-oriented backends.
func (r Record) MarshalCanonical() ([]byte, error) {
	payload := r.Payload
	if payload == nil {
		payload = ir.Object{}
	}
	return ir.MarshalCanonical(ir.Object{
		"sequence":  ir.Int(r.Seq),
		"kind":      ir.String(r.Kind),
		"payload":   payload,
		"timestamp": ir.String(r.Timestamp),
		"checksum":  ir.String(r.Checksum),
	})
}

// DecodeRecord parses a record produced by MarshalCanonical. Decode
// failures are integrity errors attributed to expectedSeq.
func DecodeRecord(data []byte, expectedSeq int64) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, &IntegrityError{Seq: expectedSeq, Reason: ReasonMalformed, Err: err}
	}
	if r.Payload == nil {
		r.Payload = ir.Object{}
	}
	return r, nil
}

// Verify checks that r has the expected sequence and an intact checksum.
func Verify(r Record, expectedSeq int64) error {
	if r.Seq != expectedSeq {
		return &IntegrityError{
			Seq:    r.Seq,
			Reason: ReasonGap,
			Detail: fmt.Sprintf("expected sequence %d", expectedSeq),
		}
	}
	if r.Kind == "" {
		return &IntegrityError{Seq: r.Seq, Reason: ReasonMalformed, Detail: "empty kind"}
	}
	want, err := ir.Checksum(r.Seq, r.Kind, r.Payload, r.Timestamp)
	if err != nil {
		return &IntegrityError{Seq: r.Seq, Reason: ReasonMalformed, Err: err}
	}
	if want != r.Checksum {
		return &IntegrityError{
			Seq:    r.Seq,
			Reason: ReasonChecksumMismatch,
			Detail: fmt.Sprintf("stored %.12s, computed %.12s", r.Checksum, want),
		}
	}
	return nil
}
