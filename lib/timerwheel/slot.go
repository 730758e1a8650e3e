// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import "sync"

// slot is one bucket of a level: an unordered intrusive queue of
// elements sharing a time window. Push, erase, and drain are O(1)
// and serialise on mu. Membership is recorded in element.slot so
// Cancel can find and unlink an element without searching.
type slot struct {
	mu    sync.Mutex
	head  *element
	tail  *element
	count int

	// level and index locate the slot inside its wheel.
	level int
	index int
}

// push appends e to the queue and records the membership.
func (s *slot) push(e *element) {
	s.mu.Lock()
	s.pushLocked(e)
	s.mu.Unlock()
}

func (s *slot) pushLocked(e *element) {
	e.prev = s.tail
	e.next = nil
	if s.tail == nil {
		s.head = e
	} else {
		s.tail.next = e
	}
	s.tail = e
	s.count++
	e.slot.Store(s)
}

// erase unlinks e if it is still a member of s. Returns false when
// the element moved or was drained since the caller looked at
// element.slot.
func (s *slot) erase(e *element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.slot.Load() != s {
		return false
	}
	if e.prev == nil {
		s.head = e.next
	} else {
		e.prev.next = e.next
	}
	if e.next == nil {
		s.tail = e.prev
	} else {
		e.next.prev = e.prev
	}
	e.prev, e.next = nil, nil
	s.count--
	e.slot.Store(nil)
	return true
}

// drain detaches every member and returns the chain. The caller owns
// the returned elements and must read element.next before pushing an
// element anywhere else. Pushes that arrive after drain start a new
// chain and are kept for the next visit.
func (s *slot) drain() *element {
	s.mu.Lock()
	defer s.mu.Unlock()

	head := s.head
	for e := head; e != nil; e = e.next {
		e.slot.Store(nil)
	}
	s.head, s.tail, s.count = nil, nil, 0
	return head
}

// len returns the number of queued elements.
func (s *slot) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
