// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import "errors"

var (
	// ErrInvalidPrecision is returned by New when Precision is not
	// positive.
	ErrInvalidPrecision = errors.New("timerwheel: precision must be positive")

	// ErrInvalidHorizon is returned by New when Horizon is negative.
	ErrInvalidHorizon = errors.New("timerwheel: horizon must not be negative")

	// ErrDegenerateTopology is returned by New when covering the
	// horizon at the requested precision needs more levels than a
	// 63-bit tick counter can address, leaving no usable topology.
	ErrDegenerateTopology = errors.New("timerwheel: no usable level topology")

	// ErrAlreadyRunning is returned by Run when another advance loop
	// has already been started on the wheel.
	ErrAlreadyRunning = errors.New("timerwheel: advance loop already running")
)
