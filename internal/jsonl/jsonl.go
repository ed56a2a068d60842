// Package jsonl reads and writes JSON Lines files with non-ASCII text kept
// verbatim.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxLine bounds a single record. Full-text precedents run to a few
// hundred kilobytes.
const maxLine = 16 << 20

// Writer appends one JSON object per line.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
	n   int
}

// Create truncates or creates path, making parent directories as needed.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return newWriter(f), nil
}

func newWriter(f *os.File) *Writer {
	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{f: f, buf: buf, enc: enc}
}

// Write encodes v as one line.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode record %d: %w", w.n+1, err)
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.n }

// Flush pushes buffered records to the file.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush %s: %w", w.f.Name(), err)
	}
	return w.f.Close()
}

// Read decodes each non-blank line of r into a T and passes it to fn.
// Decoding stops at the first malformed line or fn error.
func Read[T any](r io.Reader, fn func(T) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", line+1, err)
	}
	return nil
}

// ReadFile is Read over the file at path.
func ReadFile[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := Read(f, fn); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load returns every record in the file at path.
func Load[T any](path string) ([]T, error) {
	var out []T
	err := ReadFile(path, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}
