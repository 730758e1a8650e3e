// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import "sync"

// Default pool sizing. No elements are preallocated; up to
// DefaultPoolMax released elements are kept for reuse.
const (
	DefaultPoolMin = 0
	DefaultPoolMax = 4096
)

// pool is the freelist of reusable elements.
//
// Sizing policy: get never blocks and never fails. An empty freelist
// is refilled to min in one batch (one element when min is zero), so
// allocation continues past max without bound. put keeps at most max
// free elements and leaves the rest to the garbage collector; max
// zero disables reuse. Resizing affects only later get and put calls.
type pool struct {
	mu   sync.Mutex
	free []*element
	min  int
	max  int

	allocated uint64
	reused    uint64
	discarded uint64
}

func newPool(min, max int) *pool {
	p := &pool{}
	p.setSize(min, max)
	return p
}

// setSize stores the sizing hints. Negative values are treated as
// zero and max is raised to min when smaller.
func (p *pool) setSize(min, max int) {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}

	p.mu.Lock()
	p.min, p.max = min, max
	p.mu.Unlock()
}

// get returns an element ready for arm.
func (p *pool) get() *element {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		e := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.reused++
		return e
	}

	batch := p.min
	if batch < 1 {
		batch = 1
	}
	elements := make([]element, batch)
	p.allocated += uint64(batch)
	for i := 1; i < batch; i++ {
		p.free = append(p.free, &elements[i])
	}
	return &elements[0]
}

// put returns an element whose last reference was released. Panics
// when the element is still Armed or referenced, since reusing it
// would corrupt a live timer.
func (p *pool) put(e *element) {
	if !e.load().Terminal() {
		panic("timerwheel: releasing an armed element")
	}
	if e.refs.Load() != 0 {
		panic("timerwheel: releasing a referenced element")
	}
	e.callback = nil
	e.due = 0
	e.prev, e.next = nil, nil
	e.slot.Store(nil)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.max {
		p.discarded++
		return
	}
	p.free = append(p.free, e)
}

// stats returns a snapshot of the pool counters.
func (p *pool) stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Allocated: p.allocated,
		Reused:    p.reused,
		Discarded: p.discarded,
		Free:      len(p.free),
		Live:      p.allocated - p.discarded - uint64(len(p.free)),
		Min:       p.min,
		Max:       p.max,
	}
}
