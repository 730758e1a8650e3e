// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a scheduled timer. A timer starts
// Armed and moves to exactly one of the terminal states.
type State int32

const (
	// Armed timers are waiting in the wheel.
	Armed State = iota

	// Fired timers had their callback invoked by the advance loop.
	Fired

	// Cancelled timers were stopped before the advance loop reached
	// them. Their callback never runs.
	Cancelled
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Terminal reports whether s is Fired or Cancelled.
func (s State) Terminal() bool {
	return s == Fired || s == Cancelled
}

// element is one scheduled callback. Elements are recycled through
// the pool, so every field is reset in pool.put.
//
// References are held by slot membership (including the advance
// loop while it owns a drained element), and by an outstanding
// Handle. The element returns to the pool when the count reaches
// zero, which only happens after the state is terminal.
type element struct {
	callback func()

	// due is the absolute tick the callback is scheduled for. Written
	// before the element is pushed and read by the loop after drain,
	// both under the slot mutex.
	due uint64

	state atomic.Int32
	refs  atomic.Int32

	// slot is set iff the element is queued. Written under that
	// slot's mutex, read without it by Cancel to find the queue.
	slot atomic.Pointer[slot]

	// Intrusive links, guarded by the owning slot's mutex. After a
	// drain they belong to the advance loop until the element is
	// pushed again.
	prev, next *element
}

// arm prepares a recycled or fresh element for scheduling.
func (e *element) arm(callback func(), refs int32) {
	e.callback = callback
	e.state.Store(int32(Armed))
	e.refs.Store(refs)
}

func (e *element) load() State {
	return State(e.state.Load())
}

// fire moves the element from Armed to Fired and runs the callback.
// Returns false when the element was cancelled first.
func (e *element) fire() bool {
	if !e.state.CompareAndSwap(int32(Armed), int32(Fired)) {
		return false
	}
	e.callback()
	return true
}

// cancel moves the element from Armed to Cancelled. At most one of
// cancel and fire succeeds.
func (e *element) cancel() bool {
	return e.state.CompareAndSwap(int32(Armed), int32(Cancelled))
}

// release drops one reference and reports whether it was the last.
func (e *element) release() bool {
	remaining := e.refs.Add(-1)
	if remaining < 0 {
		panic("timerwheel: element reference count underflow")
	}
	return remaining == 0
}
