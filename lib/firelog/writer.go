// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firelog

import (
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"github.com/bureau-foundation/timewheel/lib/binhash"
	"github.com/bureau-foundation/timewheel/lib/codec"
)

// Writer appends records to a fire log. It is safe for concurrent
// use; records are sequenced in the order Append acquires the lock.
type Writer struct {
	mu          sync.Mutex
	compression Compression
	counter     *countingWriter
	compressor  io.WriteCloser
	hasher      hash.Hash
	encoder     *codec.Encoder
	file        *os.File
	records     uint64
	closed      bool
}

// Create creates (or truncates) the file at path and returns a
// Writer on it. Close closes the file.
func Create(path string, compression Compression) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("firelog: creating %s: %w", path, err)
	}
	writer, err := NewWriter(file, compression)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.file = file
	return writer, nil
}

// NewWriter writes the header to w and returns a Writer appending to
// it. Close does not close w.
func NewWriter(w io.Writer, compression Compression) (*Writer, error) {
	counter := &countingWriter{w: w}
	header := append(magic[:], byte(compression))
	if _, err := counter.Write(header); err != nil {
		return nil, fmt.Errorf("firelog: writing header: %w", err)
	}

	compressor, err := compression.compressor(counter)
	if err != nil {
		return nil, fmt.Errorf("firelog: %w", err)
	}

	hasher := binhash.New()
	return &Writer{
		compression: compression,
		counter:     counter,
		compressor:  compressor,
		hasher:      hasher,
		encoder:     codec.NewEncoder(io.MultiWriter(hasher, compressor)),
	}, nil
}

// Append assigns the next sequence number to record and writes it.
func (w *Writer) Append(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("firelog: append to closed writer")
	}
	record.Sequence = w.records
	if err := w.encoder.Encode(frame{Record: &record}); err != nil {
		return fmt.Errorf("firelog: writing record %d: %w", record.Sequence, err)
	}
	w.records++
	return nil
}

// Close writes the trailer, flushes the compressed stream, and closes
// the file when the Writer owns one. The returned Summary is valid
// when err is nil. Calling Close twice is an error.
func (w *Writer) Close() (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return Summary{}, fmt.Errorf("firelog: writer already closed")
	}
	w.closed = true

	digest := binhash.Sum(w.hasher)
	end, err := codec.Marshal(frame{Trailer: &trailer{Records: w.records, Digest: digest[:]}})
	if err == nil {
		_, err = w.compressor.Write(end)
	}
	if err != nil {
		w.closeFile()
		return Summary{}, fmt.Errorf("firelog: writing trailer: %w", err)
	}
	if err := w.compressor.Close(); err != nil {
		w.closeFile()
		return Summary{}, fmt.Errorf("firelog: flushing %s stream: %w", w.compression, err)
	}
	if err := w.closeFile(); err != nil {
		return Summary{}, fmt.Errorf("firelog: closing file: %w", err)
	}

	return Summary{
		Records:     w.records,
		Compression: w.compression,
		Digest:      digest,
		Bytes:       w.counter.written,
	}, nil
}

func (w *Writer) closeFile() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w       io.Writer
	written int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	return n, err
}
