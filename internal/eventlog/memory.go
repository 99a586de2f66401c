package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/stateloop/internal/ir"
)

// Memory is an in-process Log. It is used by tests, the scenario harness
// and `stateloop run --backend memory`.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	now     NowFunc
	closed  bool
}

// NewMemory creates an empty log. A nil now uses time.Now.
func NewMemory(now NowFunc) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now}
}

// Append implements Log.
func (m *Memory) Append(ctx context.Context, kind string, payload ir.Object) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, appendFailed(kind, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Record{}, appendFailed(kind, ErrClosed)
	}

	rec, err := NewRecord(int64(len(m.records))+1, kind, payload.Clone(), m.now())
	if err != nil {
		return Record{}, appendFailed(kind, err)
	}
	m.records = append(m.records, rec)
	return rec, nil
}

// Scan implements Log. Records appended during the scan are not visited.
func (m *Memory) Scan(ctx context.Context, fn func(Record) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	records := m.records[:len(m.records):len(m.records)]
	m.mu.RUnlock()

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// LastSeq implements Log.
func (m *Memory) LastSeq(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return int64(len(m.records)), nil
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close implements Log. Closing twice is an error.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("memory log: %w", ErrClosed)
	}
	m.closed = true
	return nil
}
