package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/stateloop/internal/ir"
)

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithNow(fixedNow))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedNow() time.Time {
	return testEpoch
}

// itemPayload builds a minimal payload for test records.
func itemPayload(id, name string) ir.Object {
	return ir.Object{
		"id":   ir.String(id),
		"name": ir.String(name),
	}
}
