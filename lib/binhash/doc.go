// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash provides BLAKE3 content hashing.
//
// Two things are hashed: the running benchmark binary, so a report
// identifies exactly which build produced it, and the uncompressed
// fire log stream, so a reader can prove the records it decoded are
// the records that were written.
//
//   - [HashFile] and [HashReader] stream content through BLAKE3 with
//     constant memory
//   - [New] and [Sum] expose the streaming hasher for writers that
//     hash as they go
//   - [FormatDigest] and [ParseDigest] convert to and from the
//     canonical hex form
//
// This package has no dependencies on other timewheel packages.
package binhash
