package eventlog

import (
	"context"
	"sync"

	"github.com/roach88/stateloop/internal/ir"
)

// Faulty wraps a Log and fails appends on demand. It stands in for an
// unavailable storage backend.
type Faulty struct {
	Log

	mu  sync.Mutex
	err error
}

// NewFaulty wraps inner. Appends succeed until Break is called.
func NewFaulty(inner Log) *Faulty {
	return &Faulty{Log: inner}
}

// Break makes every following append fail with cause.
func (f *Faulty) Break(cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = cause
}

// Heal restores normal appends.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = nil
}

// Append implements Log.
func (f *Faulty) Append(ctx context.Context, kind string, payload ir.Object) (Record, error) {
	f.mu.Lock()
	cause := f.err
	f.mu.Unlock()
	if cause != nil {
		return Record{}, appendFailed(kind, cause)
	}
	return f.Log.Append(ctx, kind, payload)
}
