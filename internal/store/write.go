package store

import (
	"context"

	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/ir"
)

// Append implements eventlog.Log. The insert fails on a primary key
// conflict, so a second process writing the same database surfaces as an
// append failure rather than a duplicate sequence.
func (s *Store) Append(ctx context.Context, kind string, payload ir.Object) (eventlog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := eventlog.NewRecord(s.lastSeq+1, kind, payload.Clone(), s.now())
	if err != nil {
		return eventlog.Record{}, eventlog.AppendFailed(kind, err)
	}

	payloadJSON, err := marshalPayload(rec.Payload)
	if err != nil {
		return eventlog.Record{}, eventlog.AppendFailed(kind, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (seq, kind, payload, timestamp, checksum)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.Seq,
		rec.Kind,
		payloadJSON,
		rec.Timestamp,
		rec.Checksum,
	)
	if err != nil {
		return eventlog.Record{}, eventlog.AppendFailed(kind, err)
	}

	s.lastSeq = rec.Seq
	return rec, nil
}
