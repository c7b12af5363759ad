// Package table stores a homogeneous sequence of records in a single
// line-oriented file that starts with a schema header.
//
// Writers in one process are serialised by a per-table mutex. Nothing guards
// the file against other processes; callers that share a data directory
// across processes must add their own locking.
package table

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Codec converts between records and lines.
type Codec[R any] interface {
	Header() string
	Encode(r R) (string, error)
	Decode(line string) (R, error)
	ID(r R) int64
}

// IOError wraps a filesystem failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// rename is replaced in tests to simulate a crash before the swap.
var rename = os.Rename

// syncDir is replaced in tests to observe directory syncs.
var syncDir = syncDirectory

// syncDirectory flushes a directory entry so a completed rename survives
// power loss.
func syncDirectory(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Table is a file-backed record table.
type Table[R any] struct {
	path  string
	codec Codec[R]
	mu    sync.Mutex
}

// Open returns the table stored at path, creating the file with its header
// line if it does not exist.
func Open[R any](path string, codec Codec[R]) (*Table[R], error) {
	t := &Table[R]{path: path, codec: codec}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := t.writeAll(nil); err != nil {
			return nil, err
		}
		return t, nil
	case err != nil:
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	case info.IsDir():
		return nil, &IOError{Op: "open", Path: path, Err: errors.New("is a directory")}
	case info.Size() == 0:
		if err := t.writeAll(nil); err != nil {
			return nil, err
		}
		return t, nil
	}

	// Fail now rather than on the first write.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	f.Close()
	return t, nil
}

// Path returns the backing file path.
func (t *Table[R]) Path() string { return t.path }

// Scan returns a lazy sequence over every decodable record in file order.
// Each iteration reopens the file. Lines that fail to decode are skipped.
// A read failure is yielded once as an *IOError and ends the sequence.
func (t *Table[R]) Scan(ctx context.Context) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R

		// Holding the lock only for the open is enough: a rewrite swaps the
		// file by rename, so this descriptor keeps reading the old content.
		t.mu.Lock()
		f, err := os.Open(t.path)
		t.mu.Unlock()
		if err != nil {
			yield(zero, &IOError{Op: "open", Path: t.path, Err: err})
			return
		}
		defer f.Close()

		err = t.decode(ctx, f, func(r R) bool { return yield(r, nil) })
		if err != nil {
			yield(zero, err)
		}
	}
}

// maxLineLen bounds a single line. Valid records are far shorter; anything
// longer is corrupt and skipped.
const maxLineLen = 64 << 10

// decode feeds every decodable record after the header to fn until fn
// returns false.
func (t *Table[R]) decode(ctx context.Context, rd io.Reader, fn func(R) bool) error {
	br := bufio.NewReaderSize(rd, 4096)
	lineNo := 0
	for {
		raw, long, err := readLine(br)
		if err != nil && err != io.EOF {
			return &IOError{Op: "read", Path: t.path, Err: err}
		}
		if len(raw) == 0 && !long && err == io.EOF {
			return nil
		}
		lineNo++

		if lineNo > 1 {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if !t.handleLine(lineNo, raw, long, fn) {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		}
	}
}

// handleLine decodes one data line and passes it to fn. It reports whether
// decoding should continue.
func (t *Table[R]) handleLine(lineNo int, raw []byte, long bool, fn func(R) bool) bool {
	if long {
		slog.Warn("skipping oversized record", "table", t.path, "line", lineNo, "limit", maxLineLen)
		return true
	}
	line := strings.TrimSuffix(string(raw), "\n")
	if strings.TrimSpace(line) == "" {
		return true
	}
	r, err := t.codec.Decode(line)
	if err != nil {
		slog.Warn("skipping corrupt record", "table", t.path, "line", lineNo, "error", err)
		return true
	}
	return fn(r)
}

// readLine reads up to and including the next newline. Lines longer than
// maxLineLen are consumed in full but returned empty with long set.
func readLine(br *bufio.Reader) (line []byte, long bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !long {
			if len(line)+len(chunk) > maxLineLen {
				long, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, long, err
	}
}

// All collects every record.
func (t *Table[R]) All(ctx context.Context) ([]R, error) {
	var records []R
	for r, err := range t.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// NextID returns one more than the largest id in the table, or 1 when the
// table is empty. It is derived from the data on every call.
func (t *Table[R]) NextID(ctx context.Context) (int64, error) {
	var last int64
	for r, err := range t.Scan(ctx) {
		if err != nil {
			return 0, err
		}
		last = max(last, t.codec.ID(r))
	}
	return last + 1, nil
}

// Append writes one record at the end of the table.
func (t *Table[R]) Append(ctx context.Context, r R) error {
	line, err := t.codec.Encode(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLine(line)
}

// Insert assigns the next id, builds the record and appends it while holding
// the table lock, so concurrent inserts never share an id.
func (t *Table[R]) Insert(ctx context.Context, build func(id int64) R) (R, error) {
	var zero R

	t.mu.Lock()
	defer t.mu.Unlock()

	records, err := t.readAll(ctx)
	if err != nil {
		return zero, err
	}
	var last int64
	for _, r := range records {
		last = max(last, t.codec.ID(r))
	}

	r := build(last + 1)
	line, err := t.codec.Encode(r)
	if err != nil {
		return zero, err
	}
	if err := t.appendLine(line); err != nil {
		return zero, err
	}
	return r, nil
}

func (t *Table[R]) appendLine(line string) error {
	f, err := os.OpenFile(t.path, os.O_RDWR|os.O_APPEND, 0)
	if err != nil {
		return &IOError{Op: "open", Path: t.path, Err: err}
	}
	defer f.Close()

	// A crash mid-append can leave the last line without its newline.
	// Terminate it so the new record starts on its own line.
	info, err := f.Stat()
	if err != nil {
		return &IOError{Op: "stat", Path: t.path, Err: err}
	}
	if size := info.Size(); size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil && err != io.EOF {
			return &IOError{Op: "read", Path: t.path, Err: err}
		}
		if last[0] != '\n' {
			line = "\n" + line
		}
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		return &IOError{Op: "write", Path: t.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &IOError{Op: "sync", Path: t.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: t.path, Err: err}
	}
	return nil
}

// Rewrite replaces the table with transform applied to every record.
// Records for which transform returns keep == false are dropped.
//
// The new content is written to a temporary file in the same directory and
// renamed over the original, so readers see either the old or the new file.
// If encoding or writing fails the original is untouched. If the rename
// fails the temporary file is left in place next to the original.
func (t *Table[R]) Rewrite(ctx context.Context, transform func(R) (R, bool)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	records, err := t.readAll(ctx)
	if err != nil {
		return err
	}

	out := records[:0]
	for _, r := range records {
		if nr, keep := transform(r); keep {
			out = append(out, nr)
		}
	}
	return t.writeAll(out)
}

// readAll loads the whole table. The caller holds t.mu.
func (t *Table[R]) readAll(ctx context.Context) ([]R, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: t.path, Err: err}
	}
	defer f.Close()

	var records []R
	err = t.decode(ctx, f, func(r R) bool {
		records = append(records, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// writeAll writes the header and records to a temporary file and renames it
// over the table file.
func (t *Table[R]) writeAll(records []R) error {
	var b strings.Builder
	b.WriteString(t.codec.Header())
	b.WriteByte('\n')
	for _, r := range records {
		line, err := t.codec.Encode(r)
		if err != nil {
			return err
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	dir, base := filepath.Split(t.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return &IOError{Op: "create temp", Path: t.path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "close", Path: tmpPath, Err: err}
	}

	if err := rename(tmpPath, t.path); err != nil {
		slog.Error("table swap failed, temporary file kept for inspection",
			"table", t.path, "temp", tmpPath, "error", err)
		return &IOError{Op: "rename", Path: t.path, Err: err}
	}
	if err := syncDir(dir); err != nil {
		return &IOError{Op: "sync dir", Path: dir, Err: err}
	}
	return nil
}
