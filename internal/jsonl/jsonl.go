// Package jsonl implements the one append-only JSON-lines file primitive
// shared by the evidence/move/query ledgers, the trace writer, and the
// streamers (spec section 5: every shared artifact is append-only and owned
// by exactly one writer at a time).
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// TailLines returns up to the last maxLines lines of the file at path,
// oldest-first. A missing file returns an empty slice, not an error, since
// callers tail artifacts that may not exist yet early in a task.
func TailLines(path string, maxLines int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	var all []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if maxLines <= 0 || len(all) <= maxLines {
		return all, nil
	}
	return all[len(all)-maxLines:], nil
}

// Writer is a mutex-guarded append-only JSON-lines file.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

// Open creates or appends to the file at path.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open jsonl file %q: %w", path, err)
	}
	return &Writer{file: f, buf: bufio.NewWriter(f)}, nil
}

// Append marshals v and writes it as one line, flushing immediately so a
// crash never loses a fully-formed record.
func (w *Writer) Append(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal jsonl record: %w", err)
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

// AppendRaw writes a pre-encoded line (without its own trailing newline),
// used by streamers appending opaque bytes rather than structured records.
func (w *Writer) AppendRaw(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}
