package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/ir"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"events", "meta"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("user_version", "2"); err != nil {
		t.Error(err)
	}
}

func TestOpen_MigratesVersionZeroDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("create v0 schema: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() on v0 database failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_events_kind'",
	).Scan(&name)
	if err != nil {
		t.Errorf("kind index missing after migration: %v", err)
	}
}

func TestOpen_RejectsOtherRecordVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE meta SET value = '0' WHERE key = 'record_version'`); err != nil {
		t.Fatalf("update meta: %v", err)
	}
	s.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("Open() accepted a database with another record version")
	}
}

func TestAppend_AssignsSequenceAndPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, WithNow(fixedNow))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	for i, name := range []string{"bolt", "nut", "washer"} {
		rec, err := s.Append(ctx, "item_added", itemPayload(name, name))
		if err != nil {
			t.Fatalf("Append(%s) failed: %v", name, err)
		}
		if rec.Seq != int64(i+1) {
			t.Errorf("Append(%s) seq = %d, want %d", name, rec.Seq, i+1)
		}
	}
	s.Close()

	s, err = Open(path, WithNow(fixedNow))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	rec, err := s.Append(ctx, "item_removed", ir.Object{"id": ir.String("nut")})
	if err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}
	if rec.Seq != 4 {
		t.Errorf("seq after reopen = %d, want 4", rec.Seq)
	}

	records, err := eventlog.ReadAll(ctx, s)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("ReadAll() returned %d records, want 4", len(records))
	}
	if records[1].Payload["name"] != ir.String("nut") {
		t.Errorf("records[1].Payload = %v", records[1].Payload)
	}
	if records[0].Timestamp != "2025-01-01T00:00:00Z" {
		t.Errorf("timestamp = %q", records[0].Timestamp)
	}
}

func TestAppend_LargeIntegersSurvive(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	big := ir.Int(1<<62 + 1)
	if _, err := s.Append(ctx, "stock_adjusted", ir.Object{"delta": big}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	rec, err := s.ReadRecord(ctx, 1)
	if err != nil {
		t.Fatalf("ReadRecord() failed: %v", err)
	}
	if rec.Payload["delta"] != big {
		t.Errorf("delta = %v, want %v", rec.Payload["delta"], big)
	}
	if err := eventlog.Verify(rec, 1); err != nil {
		t.Errorf("Verify() failed: %v", err)
	}
}

func TestAppend_FailureWrapsSentinel(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if _, err := s.db.Exec(`DROP TABLE events`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := s.Append(ctx, "item_added", itemPayload("a", "a"))
	if !errors.Is(err, eventlog.ErrAppendFailed) {
		t.Fatalf("Append() error = %v, want ErrAppendFailed", err)
	}
	if s.lastSeq != 0 {
		t.Errorf("lastSeq advanced to %d after failed append", s.lastSeq)
	}
}

func TestAppend_ConflictingWriterFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open(a) failed: %v", err)
	}
	defer a.Close()
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open(b) failed: %v", err)
	}
	defer b.Close()

	if _, err := a.Append(ctx, "item_added", itemPayload("x", "x")); err != nil {
		t.Fatalf("a.Append() failed: %v", err)
	}
	if _, err := b.Append(ctx, "item_added", itemPayload("y", "y")); !errors.Is(err, eventlog.ErrAppendFailed) {
		t.Errorf("second writer Append() error = %v, want ErrAppendFailed", err)
	}
}

func TestScan_DetectsTamperedRow(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, id := range []string{"a", "b"} {
		if _, err := s.Append(ctx, "item_added", itemPayload(id, id)); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	if _, err := s.db.Exec(`UPDATE events SET payload = '{"id":"b","name":"zzz"}' WHERE seq = 2`); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, err := eventlog.ReadAll(ctx, s)
	var ie *eventlog.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("ReadAll() error = %v, want IntegrityError", err)
	}
	if ie.Seq != 2 || ie.Reason != eventlog.ReasonChecksumMismatch {
		t.Errorf("IntegrityError = %+v", ie)
	}
}

func TestScan_MalformedPayload(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO events (seq, kind, payload, timestamp, checksum)
		VALUES (1, 'item_added', '{"qty": 1.5}', '2025-01-01T00:00:00Z', 'x')
	`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = s.Scan(ctx, func(eventlog.Record) error { return nil })
	if !eventlog.IsIntegrityError(err) {
		t.Errorf("Scan() error = %v, want IntegrityError", err)
	}
}

func TestScanFromAndKind(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	kinds := []string{"item_added", "item_renamed", "item_added", "item_removed"}
	for _, k := range kinds {
		if _, err := s.Append(ctx, k, itemPayload("a", "a")); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	var seqs []int64
	err := eventlog.ScanFrom(ctx, s, 2, func(r eventlog.Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("ScanFrom() failed: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 3 || seqs[1] != 4 {
		t.Errorf("ScanFrom(2) seqs = %v, want [3 4]", seqs)
	}

	seqs = nil
	err = s.ScanKind(ctx, "item_added", func(r eventlog.Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("ScanKind() failed: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 3 {
		t.Errorf("ScanKind seqs = %v, want [1 3]", seqs)
	}

	counts, err := s.CountByKind(ctx)
	if err != nil {
		t.Fatalf("CountByKind() failed: %v", err)
	}
	if counts["item_added"] != 2 || counts["item_removed"] != 1 {
		t.Errorf("CountByKind() = %v", counts)
	}
}

func TestReadRecord_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRecord(context.Background(), 42)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadRecord() error = %v, want sql.ErrNoRows", err)
	}
}
