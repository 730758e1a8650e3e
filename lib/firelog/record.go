// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firelog

import (
	"errors"

	"github.com/bureau-foundation/timewheel/lib/binhash"
)

// Record describes one timer firing.
type Record struct {
	// Sequence is the record's position in the log, assigned by the
	// Writer.
	Sequence uint64 `cbor:"seq"`

	// Timer identifies the timer within the run.
	Timer uint64 `cbor:"timer"`

	// Tick is the wheel tick the callback ran on.
	Tick uint64 `cbor:"tick"`

	// DelayNS is the requested delay.
	DelayNS int64 `cbor:"delay_ns"`

	// LateNS is how long after start+delay the callback observed the
	// clock. Negative values mean the timer fired early.
	LateNS int64 `cbor:"late_ns"`
}

// Summary describes a finished log.
type Summary struct {
	Records     uint64
	Compression Compression

	// Digest is the BLAKE3 digest of the uncompressed record stream.
	Digest binhash.Digest

	// Bytes is the size of the file including the header.
	Bytes int64
}

// trailer closes the record sequence.
type trailer struct {
	Records uint64 `cbor:"records"`
	Digest  []byte `cbor:"digest"`
}

// frame is one item of the CBOR sequence. Exactly one field is set.
type frame struct {
	Record  *Record  `cbor:"r,omitempty"`
	Trailer *trailer `cbor:"t,omitempty"`
}

// magic opens every fire log file.
var magic = [4]byte{'T', 'W', 'F', 'L'}

var (
	// ErrBadMagic is returned when a file does not start with the fire
	// log header.
	ErrBadMagic = errors.New("firelog: not a fire log")

	// ErrTruncated is returned when the record stream ends without a
	// trailer, as left by a writer that was never closed.
	ErrTruncated = errors.New("firelog: log truncated before trailer")

	// ErrDigestMismatch is returned when the records read do not hash
	// to the digest in the trailer, or their count disagrees.
	ErrDigestMismatch = errors.New("firelog: digest mismatch")
)
