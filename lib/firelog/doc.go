// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package firelog records timer firings to a compact, verifiable file.
//
// A fire log is a five-byte header (the magic "TWFL" and a
// [Compression] byte) followed by a compressed CBOR sequence
// (RFC 8742). Every item but the last carries one [Record]; the last
// is a trailer holding the record count and the BLAKE3 digest of the
// uncompressed record items. [Reader] recomputes the digest as it
// decodes and reports [ErrDigestMismatch] at the end when the two
// disagree, or [ErrTruncated] when the trailer is missing.
//
// The benchmark harness appends one record per callback from its
// dispatch workers, then reads the log back to compute lateness
// percentiles.
package firelog
