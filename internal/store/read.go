package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/stateloop/internal/eventlog"
)

// Scan implements eventlog.Log. Records are visited ORDER BY seq ASC.
// fn must not call back into the store: the single connection is held
// until the scan ends.
func (s *Store) Scan(ctx context.Context, fn func(eventlog.Record) error) error {
	return s.ScanFrom(ctx, 0, fn)
}

// ScanFrom implements eventlog.RangeScanner.
func (s *Store) ScanFrom(ctx context.Context, after int64, fn func(eventlog.Record) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, payload, timestamp, checksum
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC
	`, after)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate events: %w", err)
	}
	return nil
}

// ScanKind visits the records of one kind in sequence order.
func (s *Store) ScanKind(ctx context.Context, kind string, fn func(eventlog.Record) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, payload, timestamp, checksum
		FROM events
		WHERE kind = ?
		ORDER BY seq ASC
	`, kind)
	if err != nil {
		return fmt.Errorf("query events by kind: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate events by kind: %w", err)
	}
	return nil
}

// ReadRecord retrieves a single record by sequence.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRecord(ctx context.Context, seq int64) (eventlog.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, kind, payload, timestamp, checksum
		FROM events
		WHERE seq = ?
	`, seq)
	return scanRecord(row)
}

// LastSeq implements eventlog.Log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return last, nil
}

// CountByKind returns the number of records per kind.
func (s *Store) CountByKind(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM events
		GROUP BY kind
		ORDER BY kind COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row. A payload that does not parse is an
// integrity error.
func scanRecord(row rowScanner) (eventlog.Record, error) {
	var rec eventlog.Record
	var payloadJSON string
	err := row.Scan(&rec.Seq, &rec.Kind, &payloadJSON, &rec.Timestamp, &rec.Checksum)
	if err == sql.ErrNoRows {
		return eventlog.Record{}, err
	}
	if err != nil {
		return eventlog.Record{}, fmt.Errorf("scan event: %w", err)
	}

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return eventlog.Record{}, &eventlog.IntegrityError{
			Seq:    rec.Seq,
			Reason: eventlog.ReasonMalformed,
			Err:    err,
		}
	}
	rec.Payload = payload
	return rec, nil
}
