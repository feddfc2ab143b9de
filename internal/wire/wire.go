// Package wire reads and writes newline-delimited JSON trace records.
//
// Wire format:
//
//	<json>\n
//
// Blank lines and lines starting with # are skipped on read.
package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.klb.dev/wlclip/internal/message"
)

// MaxRecordSize is the largest record we will read (16 MiB).
const MaxRecordSize = 16 * 1024 * 1024

// Reader decodes records from an io.Reader.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), MaxRecordSize)
	return &Reader{sc: sc}
}

// Line returns the number of the last line read.
func (r *Reader) Line() int { return r.line }

// ReadRecord returns the next record, or io.EOF at the end of input. A line
// longer than MaxRecordSize is an error and ends the stream.
func (r *Reader) ReadRecord() (*message.Record, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		rec, err := message.Decode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line %d: record larger than %d bytes: %w", r.line+1, MaxRecordSize, err)
		}
		return nil, err
	}
	return nil, io.EOF
}

// Writer encodes records to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteRecord writes rec followed by a newline.
func (w *Writer) WriteRecord(rec *message.Record) error {
	raw, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(append(raw, '\n'))
	return err
}
