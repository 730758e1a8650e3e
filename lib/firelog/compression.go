// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firelog

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the stream compression of a fire log body.
// The value is stored as one byte in the file header, so these are
// format constants.
type Compression uint8

const (
	// CompressionNone stores the CBOR sequence as is.
	CompressionNone Compression = 0

	// CompressionLZ4 wraps the body in an LZ4 frame. Cheapest to
	// write, which matters when the log is fed from the fire path.
	CompressionLZ4 Compression = 1

	// CompressionZstd wraps the body in a zstd stream at the default
	// level. Records are highly repetitive, so the ratio is large.
	CompressionZstd Compression = 2
)

// String returns the configuration name of a compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression from its configuration name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown fire log compression: %q", name)
	}
}

// compressor returns a writer that compresses into w. Closing it
// flushes the compressed stream but does not close w.
func (c Compression) compressor(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return encoder, nil
	default:
		return nil, fmt.Errorf("unsupported fire log compression: %d", uint8(c))
	}
}

// decompressor returns a reader that decompresses r and a function
// releasing its resources.
func (c Compression) decompressor(r io.Reader) (io.Reader, func(), error) {
	switch c {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return decoder, decoder.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported fire log compression: %d", uint8(c))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
