// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firelog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/bureau-foundation/timewheel/lib/binhash"
	"github.com/bureau-foundation/timewheel/lib/codec"
)

// Reader decodes records from a fire log and verifies them against
// the trailer.
type Reader struct {
	compression Compression
	decoder     *codec.Decoder
	release     func()
	hasher      hash.Hash
	file        *os.File
	records     uint64
	digest      binhash.Digest
	done        bool
}

// Open opens the fire log at path. Close closes the file.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("firelog: opening %s: %w", path, err)
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	reader.file = file
	return reader, nil
}

// NewReader reads the header from r and returns a Reader over the
// records that follow.
func NewReader(r io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(r)

	var header [len(magic) + 1]byte
	if _, err := io.ReadFull(buffered, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadMagic
		}
		return nil, fmt.Errorf("firelog: reading header: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], magic[:]) {
		return nil, ErrBadMagic
	}

	compression := Compression(header[len(magic)])
	body, release, err := compression.decompressor(buffered)
	if err != nil {
		return nil, fmt.Errorf("firelog: %w", err)
	}
	return &Reader{
		compression: compression,
		decoder:     codec.NewDecoder(body),
		release:     release,
		hasher:      binhash.New(),
	}, nil
}

// Compression returns the body compression named in the header.
func (r *Reader) Compression() Compression {
	return r.compression
}

// Next returns the next record. After the last record it verifies
// the trailer and returns io.EOF, or ErrDigestMismatch when the
// records do not match it. A stream without a trailer yields
// ErrTruncated.
func (r *Reader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}

	var raw codec.RawMessage
	if err := r.decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrTruncated
		}
		return Record{}, fmt.Errorf("firelog: decoding record %d: %w", r.records, err)
	}

	var item frame
	if err := codec.Unmarshal(raw, &item); err != nil {
		return Record{}, fmt.Errorf("firelog: decoding record %d: %w", r.records, err)
	}

	switch {
	case item.Record != nil:
		r.hasher.Write(raw)
		r.records++
		return *item.Record, nil
	case item.Trailer != nil:
		r.done = true
		return Record{}, r.verify(item.Trailer)
	default:
		return Record{}, fmt.Errorf("firelog: empty frame after record %d", r.records)
	}
}

func (r *Reader) verify(end *trailer) error {
	r.digest = binhash.Sum(r.hasher)
	if end.Records != r.records {
		return fmt.Errorf("%w: read %d records, trailer says %d", ErrDigestMismatch, r.records, end.Records)
	}
	if !bytes.Equal(end.Digest, r.digest[:]) {
		return fmt.Errorf("%w: computed %s, trailer says %x", ErrDigestMismatch, r.digest, end.Digest)
	}
	return io.EOF
}

// Digest returns the digest of the records read so far. After Next
// returns io.EOF it is the verified digest of the whole log.
func (r *Reader) Digest() binhash.Digest {
	if r.done {
		return r.digest
	}
	return binhash.Sum(r.hasher)
}

// Close releases decompressor resources and closes the file when the
// Reader owns one.
func (r *Reader) Close() error {
	r.release()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ReadAll reads and verifies every record in the log at path.
func ReadAll(path string) ([]Record, Summary, error) {
	reader, err := Open(path)
	if err != nil {
		return nil, Summary{}, err
	}
	defer reader.Close()

	var records []Record
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, Summary{}, err
		}
		records = append(records, record)
	}

	info, err := os.Stat(path)
	if err != nil {
		return records, Summary{}, fmt.Errorf("firelog: %w", err)
	}
	return records, Summary{
		Records:     uint64(len(records)),
		Compression: reader.Compression(),
		Digest:      reader.Digest(),
		Bytes:       info.Size(),
	}, nil
}
