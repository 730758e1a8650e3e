// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration.
//
// JSON is used for human-facing output (the bench report with
// --format json). CBOR is used for machine-facing output: fire log
// records and the --format cbor report. Every package encodes through
// this one configuration, Core Deterministic Encoding (RFC 8949
// §4.2), so the same data always produces identical bytes.
//
// For buffers:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For streams such as the fire log:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type is only ever serialized as CBOR, such as
//     firelog.Record.
//   - `json` tag: the type may be serialized as both JSON and CBOR.
//     fxamacker/cbor v2 falls back to `json` tags when `cbor` tags are
//     absent. timerwheel.Stats is the main example.
//
// Never use both tags on the same field.
package codec
