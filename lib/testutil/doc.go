// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so a test that would otherwise hang on a channel fails
// with a message instead. [RequireEventually] polls a condition for
// tests that run against the real clock, such as stress tests that
// drive a wheel at millisecond precision.
//
// These helpers are the only place tests touch wall-clock timeouts.
// Everything else uses clock.Fake.
//
// All helpers call t.Fatalf on failure.
package testutil
