// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timerwheel implements a hierarchical timing wheel: a timer
// scheduler whose start, cancel, and per-tick costs are O(1)
// regardless of how many timers are pending.
//
// Time is discretised into ticks of a configured precision counted
// from the wheel's epoch. Level 0 holds 4 slots of one tick each;
// every level above holds 64 slots, each covering a whole revolution
// of the level below. The number of levels is the smallest that lets
// the wheel address the configured horizon. A timer is placed in the
// level whose bit group is the highest to differ between its due
// tick and the current tick. When the lower levels wrap, the slot
// under the next level's cursor cascades: its timers move down
// toward level 0, where they fire.
//
// A single advance loop, started with [Wheel.Run], drives the wheel
// from a [clock.Clock]. Callbacks run on that loop and must be short.
// [Wheel.Start], [Wheel.Schedule], and [Wheel.Cancel] may be called
// from any goroutine; they take only the lock of the slot they touch
// and never wait for the loop. Each timer fires at most once, in the
// tick window [start+delay, start+delay+precision) when the loop
// keeps up, and a cancelled timer never fires.
//
// Timers are backed by pooled elements that are reference counted
// between the wheel and the caller's [Handle]. An element is
// recycled only when both have let go, so a stale Handle can never
// observe or cancel a later timer.
package timerwheel
