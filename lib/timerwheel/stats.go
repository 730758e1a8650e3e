// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import "time"

// Stats is a snapshot of a wheel's counters, returned by
// [Wheel.Stats]. The json tags name the fields in both JSON and CBOR
// reports.
type Stats struct {
	// Started counts every Start and Schedule call.
	Started uint64 `json:"started"`

	// Fired counts callbacks invoked.
	Fired uint64 `json:"fired"`

	// Cancelled counts successful Cancel calls.
	Cancelled uint64 `json:"cancelled"`

	// Erased counts cancelled timers unlinked from their slot by
	// Cancel itself.
	Erased uint64 `json:"erased"`

	// Reclaimed counts cancelled timers the advance loop dropped
	// because Cancel found them already detached.
	Reclaimed uint64 `json:"reclaimed"`

	// Cascaded counts re-placements of timers from a higher level
	// into a lower one, or back into the top level when clamped.
	Cascaded uint64 `json:"cascaded"`

	// Pending is Started minus Fired minus Cancelled.
	Pending uint64 `json:"pending"`

	// CurrentTick is the last tick the advance loop processed.
	CurrentTick uint64 `json:"current_tick"`

	Levels    int           `json:"levels"`
	Precision time.Duration `json:"precision_ns"`

	Pool PoolStats `json:"pool"`
}

// PoolStats describes the element pool.
type PoolStats struct {
	// Allocated counts elements ever created.
	Allocated uint64 `json:"allocated"`

	// Reused counts allocations served from the freelist.
	Reused uint64 `json:"reused"`

	// Discarded counts released elements dropped because the
	// freelist was at Max.
	Discarded uint64 `json:"discarded"`

	// Free is the current freelist length.
	Free int `json:"free"`

	// Live is the number of elements in use: scheduled, firing, or
	// held by an unreleased Handle.
	Live uint64 `json:"live"`

	Min int `json:"min"`
	Max int `json:"max"`
}
