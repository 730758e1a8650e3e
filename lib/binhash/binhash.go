// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest.
type Digest [32]byte

// New returns a streaming BLAKE3 hasher producing 32-byte sums.
// Callers that need a Digest from it use Sum.
func New() hash.Hash {
	return blake3.New()
}

// Sum returns the current digest of hasher, which must come from New.
func Sum(hasher hash.Hash) Digest {
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// HashReader streams r through BLAKE3 until EOF.
func HashReader(r io.Reader) (Digest, error) {
	hasher := New()
	if _, err := io.Copy(hasher, r); err != nil {
		return Digest{}, err
	}
	return Sum(hasher), nil
}

// HashFile computes the BLAKE3 digest of the file at path. The file
// is streamed in chunks, so memory use is constant regardless of
// file size.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	digest, err := HashReader(file)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}

// FormatDigest returns the hex-encoded string representation of a
// digest. This is the canonical format in reports and log output.
func FormatDigest(digest Digest) string {
	return hex.EncodeToString(digest[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return FormatDigest(d)
}

// ParseDigest parses a hex-encoded digest string. Returns an error if
// the string is not a valid 64-character hex encoding of 32 bytes.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing hash digest: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("hash digest is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}
