package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/roach88/stateloop/internal/ir"
)

// maxLine bounds a single JSON-lines record.
const maxLine = 4 << 20

// FileOptions configures a File log.
type FileOptions struct {
	// Sync calls fsync after every append.
	Sync bool

	// Now supplies timestamps. Nil uses time.Now.
	Now NowFunc
}

// File is a Log stored as canonical JSON lines, one record per line,
// opened in append mode.
type File struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	lastSeq int64
	sync    bool
	now     NowFunc
	closed  bool

	// write appends one line to file; replaced in tests.
	write func([]byte) (int, error)

	// torn is set when a failed append could not be rolled back. The log
	// refuses further appends rather than write after a partial line.
	torn error
}

// OpenFile opens or creates the log at path and recovers the last
// sequence number. Every existing record is verified, so a damaged file
// is reported before anything is appended to it.
func OpenFile(path string, opts FileOptions) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	l := &File{path: path, file: f, sync: opts.Sync, now: now}
	l.write = f.Write

	last, err := l.recover()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	l.lastSeq = last

	slog.Debug("event log opened", "path", path, "last_seq", last)
	return l, nil
}

func (l *File) recover() (int64, error) {
	expected := int64(1)
	err := l.scanFile(context.Background(), func(r Record) error {
		if err := Verify(r, expected); err != nil {
			return err
		}
		expected++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expected - 1, nil
}

// Append implements Log.
func (l *File) Append(ctx context.Context, kind string, payload ir.Object) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, appendFailed(kind, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Record{}, appendFailed(kind, ErrClosed)
	}
	if l.torn != nil {
		return Record{}, appendFailed(kind, l.torn)
	}

	rec, err := NewRecord(l.lastSeq+1, kind, payload.Clone(), l.now())
	if err != nil {
		return Record{}, appendFailed(kind, err)
	}
	line, err := rec.MarshalCanonical()
	if err != nil {
		return Record{}, appendFailed(kind, err)
	}
	line = append(line, '\n')

	info, err := l.file.Stat()
	if err != nil {
		return Record{}, appendFailed(kind, err)
	}
	size := info.Size()

	if _, err := l.write(line); err != nil {
		l.rollback(size)
		return Record{}, appendFailed(kind, err)
	}
	if l.sync {
		if err := l.file.Sync(); err != nil {
			l.rollback(size)
			return Record{}, appendFailed(kind, err)
		}
	}

	l.lastSeq = rec.Seq
	return rec, nil
}

// rollback truncates a failed append so that no partial or unacknowledged
// line stays in the file. Called with l.mu held.
func (l *File) rollback(size int64) {
	if err := l.file.Truncate(size); err != nil {
		l.torn = fmt.Errorf("roll back failed append to %d bytes: %w", size, err)
		slog.Error("event log left with a partial record", "path", l.path, "error", err)
	}
}

// Scan implements Log.
func (l *File) Scan(ctx context.Context, fn func(Record) error) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return l.scanFile(ctx, fn)
}

// scanFile reads the file through a separate descriptor so that the
// append handle keeps its position.
func (l *File) scanFile(ctx context.Context, fn func(Record) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("scan event log: %w", err)
	}
	defer f.Close()
	return scanLines(ctx, f, fn)
}

func scanLines(ctx context.Context, r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	expected := int64(1)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := DecodeRecord(line, expected)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		expected++
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return &IntegrityError{Seq: expected, Reason: ReasonMalformed, Err: err}
		}
		return fmt.Errorf("scan event log: %w", err)
	}
	return nil
}

// LastSeq implements Log.
func (l *File) LastSeq(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	return l.lastSeq, nil
}

// Path returns the file path.
func (l *File) Path() string {
	return l.path
}

// Close syncs and closes the file.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("file log: %w", ErrClosed)
	}
	l.closed = true
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("close event log: %w", err)
	}
	return l.file.Close()
}
