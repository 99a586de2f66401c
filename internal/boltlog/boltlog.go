// Package boltlog stores the event log in a bbolt database.
//
// Records live in one bucket keyed by the big-endian sequence number, so
// cursor order is sequence order. Each value is the record's canonical
// JSON line. bbolt holds an exclusive file lock, which makes a second
// process opening the same log fail instead of interleaving writes.
package boltlog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/ir"
)

var bucketEvents = []byte("events")

// Log is an eventlog.Log backed by bbolt.
type Log struct {
	db  *bolt.DB
	now eventlog.NowFunc
}

var _ eventlog.Log = (*Log)(nil)
var _ eventlog.RangeScanner = (*Log)(nil)

// Options configures Open.
type Options struct {
	// Timeout bounds waiting for the file lock. Zero means one second.
	Timeout time.Duration

	// Now supplies timestamps. Nil uses time.Now.
	Now eventlog.NowFunc
}

// Open opens or creates the database at path.
func Open(path string, opts Options) (*Log, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt log %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize bolt log: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	slog.Debug("bolt event log opened", "path", path)
	return &Log{db: db, now: now}, nil
}

// Append implements eventlog.Log. The next sequence is read from the last
// key inside the write transaction, so it cannot race another append.
func (l *Log) Append(ctx context.Context, kind string, payload ir.Object) (eventlog.Record, error) {
	if err := ctx.Err(); err != nil {
		return eventlog.Record{}, eventlog.AppendFailed(kind, err)
	}

	var rec eventlog.Record
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)

		var last uint64
		if k, _ := b.Cursor().Last(); k != nil {
			last = unmarshalSeq(k)
		}

		var err error
		rec, err = eventlog.NewRecord(int64(last)+1, kind, payload.Clone(), l.now())
		if err != nil {
			return err
		}
		line, err := rec.MarshalCanonical()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(uint64(rec.Seq)), line)
	})
	if err != nil {
		return eventlog.Record{}, eventlog.AppendFailed(kind, err)
	}
	return rec, nil
}

// Scan implements eventlog.Log.
func (l *Log) Scan(ctx context.Context, fn func(eventlog.Record) error) error {
	return l.ScanFrom(ctx, 0, fn)
}

// ScanFrom implements eventlog.RangeScanner. The scan runs inside one
// read transaction and sees a consistent snapshot.
func (l *Log) ScanFrom(ctx context.Context, after int64, fn func(eventlog.Record) error) error {
	return l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(marshalSeq(uint64(after) + 1)); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			seq := int64(unmarshalSeq(k))
			rec, err := eventlog.DecodeRecord(v, seq)
			if err != nil {
				return err
			}
			if rec.Seq != seq {
				return &eventlog.IntegrityError{
					Seq:    seq,
					Reason: eventlog.ReasonMalformed,
					Detail: fmt.Sprintf("stored under key %d but carries sequence %d", seq, rec.Seq),
				}
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// LastSeq implements eventlog.Log.
func (l *Log) LastSeq(ctx context.Context) (int64, error) {
	var last int64
	err := l.db.View(func(tx *bolt.Tx) error {
		if k, _ := tx.Bucket(bucketEvents).Cursor().Last(); k != nil {
			last = int64(unmarshalSeq(k))
		}
		return nil
	})
	return last, err
}

// Close implements eventlog.Log.
func (l *Log) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close bolt log: %w", err)
	}
	return nil
}

// IsLocked reports whether err means another process holds the database.
func IsLocked(err error) bool {
	return errors.Is(err, bolt.ErrTimeout)
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
