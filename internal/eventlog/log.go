package eventlog

import (
	"context"
	"time"

	"github.com/roach88/stateloop/internal/ir"
)

// Log is an append-only, totally ordered record store.
//
// Append assigns the next sequence number, seals the record with its
// checksum and makes it durable before returning. On error nothing was
// committed and the error wraps ErrAppendFailed.
//
// Scan calls fn for every record in sequence order. Returning an error
// from fn stops the scan and Scan returns that error. Scan does not verify
// records; Replay and ReadAll do.
type Log interface {
	Append(ctx context.Context, kind string, payload ir.Object) (Record, error)
	Scan(ctx context.Context, fn func(Record) error) error
	LastSeq(ctx context.Context) (int64, error)
	Close() error
}

// NowFunc supplies record timestamps.
type NowFunc func() time.Time

// ReadAll scans log and verifies every record, returning them in order.
func ReadAll(ctx context.Context, log Log) ([]Record, error) {
	var out []Record
	expected := int64(1)
	err := log.Scan(ctx, func(r Record) error {
		if err := Verify(r, expected); err != nil {
			return err
		}
		out = append(out, r)
		expected++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RangeScanner is implemented by backends that can start a scan after a
// given sequence without reading the records before it.
type RangeScanner interface {
	ScanFrom(ctx context.Context, after int64, fn func(Record) error) error
}

// ScanFrom calls fn for every record with a sequence greater than after.
// Each record's checksum is verified. Backends implementing RangeScanner
// seek directly; the others are filtered.
func ScanFrom(ctx context.Context, log Log, after int64, fn func(Record) error) error {
	visit := func(r Record) error {
		if err := Verify(r, r.Seq); err != nil {
			return err
		}
		return fn(r)
	}
	if rs, ok := log.(RangeScanner); ok {
		return rs.ScanFrom(ctx, after, visit)
	}
	return log.Scan(ctx, func(r Record) error {
		if r.Seq <= after {
			return nil
		}
		return visit(r)
	})
}
