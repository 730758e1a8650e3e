// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import (
	"runtime"
	"sync/atomic"
)

// Handle refers to one timer created by [Wheel.Start]. It holds a
// reference on the timer's element so the element is not recycled
// while the Handle can still observe it.
//
// The reference is dropped by Release, or automatically once the
// Handle becomes unreachable. After Release, State reports false and
// Stop reports true without touching the wheel.
//
// Stop and State are safe for concurrent use. Release must not run
// concurrently with Stop or State on the same Handle.
type Handle struct {
	wheel   *Wheel
	ref     *handleRef
	cleanup runtime.Cleanup
}

// handleRef is the part of a Handle the cleanup function may touch.
// It must not point back at the Handle.
type handleRef struct {
	element atomic.Pointer[element]
}

func newHandle(w *Wheel, e *element) *Handle {
	ref := &handleRef{}
	ref.element.Store(e)
	handle := &Handle{wheel: w, ref: ref}
	handle.cleanup = runtime.AddCleanup(handle, func(ref *handleRef) {
		ref.drop(w)
	}, ref)
	return handle
}

// drop releases the Handle's element reference once.
func (r *handleRef) drop(w *Wheel) {
	if e := r.element.Swap(nil); e != nil {
		w.release(e)
	}
}

// Stop cancels the timer. It is shorthand for Wheel.Cancel(h) and
// is safe to call on a nil Handle.
func (h *Handle) Stop() bool {
	if h == nil {
		return true
	}
	return h.wheel.Cancel(h)
}

// State returns the timer's lifecycle state. The second result is
// false for a nil or released Handle.
func (h *Handle) State() (State, bool) {
	if h == nil || h.ref == nil {
		return 0, false
	}
	defer keepAlive(h)

	e := h.ref.element.Load()
	if e == nil {
		return 0, false
	}
	return e.load(), true
}

// Valid reports whether the Handle still refers to a timer.
func (h *Handle) Valid() bool {
	_, ok := h.State()
	return ok
}

// Release drops the Handle's reference without cancelling the timer.
// A released Handle is empty. Calling Release more than once is a
// no-op.
func (h *Handle) Release() {
	if h == nil || h.ref == nil {
		return
	}
	h.cleanup.Stop()
	h.ref.drop(h.wheel)
}

// keepAlive holds h reachable until the caller's use of its element
// has finished, so the cleanup cannot release the element mid-call.
func keepAlive(h *Handle) {
	runtime.KeepAlive(h)
}
