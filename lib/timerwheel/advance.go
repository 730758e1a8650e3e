// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import (
	"context"
	"runtime"
	"time"
)

// Run drives the wheel until ctx is cancelled. It sleeps until the
// next tick boundary, then processes every tick between the last one
// handled and the clock's current tick in order, so a late wake-up
// fires the missed ticks' timers before the newer ones. Callbacks run
// on the calling goroutine.
//
// Run returns ErrAlreadyRunning when the wheel already has a loop.
// Otherwise it returns ctx.Err() once ctx is cancelled; timers still
// in the wheel stay pending. Done is closed when Run returns.
func (w *Wheel) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(w.done)

	if w.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if w.pinCPU {
			if err := pinToCPU(w.cpu); err != nil {
				w.logger.Warn("advance loop CPU pinning failed",
					"cpu", w.cpu,
					"error", err,
				)
			} else {
				w.logger.Debug("advance loop pinned", "cpu", w.cpu)
			}
		}
	}

	w.logger.Debug("advance loop started",
		"precision", w.precision,
		"levels", len(w.levels),
		"horizon", w.horizon,
	)

	for ctx.Err() == nil {
		now := w.clock.Now()
		target := w.tickAt(now)
		w.advanceTo(target)

		wait := w.boundary(target + 1).Sub(w.clock.Now())
		select {
		case <-ctx.Done():
		case <-w.clock.After(wait):
		}
	}

	w.logger.Debug("advance loop stopped",
		"current_tick", w.cursor.load(),
		"pending", w.Stats().Pending,
	)
	return ctx.Err()
}

// Done returns a channel closed when Run returns.
func (w *Wheel) Done() <-chan struct{} {
	return w.done
}

// advanceTo processes every tick after the current one up to and
// including target.
func (w *Wheel) advanceTo(target uint64) {
	current := w.cursor.load()
	if target <= current {
		return
	}
	if backlog := target - current; backlog > w.lagWarning {
		w.logger.Warn("advance loop behind schedule",
			"backlog_ticks", backlog,
			"backlog", time.Duration(backlog)*w.precision,
		)
	}
	for tick := current + 1; tick <= target; tick++ {
		w.tick(tick)
	}
}

// tick processes one tick: the level-0 slot under the new cursor
// fires, and when level 0 wrapped, each higher level whose lower
// levels all wrapped cascades the slot under its cursor.
func (w *Wheel) tick(tick uint64) {
	w.cursor.advance(tick)

	w.expire(w.levels[0].slots[tick&level0Mask].drain(), tick)
	if tick&level0Mask != 0 {
		return
	}
	for levelIndex := 1; levelIndex < len(w.levels); levelIndex++ {
		index := group(tick, levelIndex)
		w.cascade(w.levels[levelIndex].slots[index].drain(), tick)
		if index != 0 {
			return
		}
	}
}

// expire handles a drained level-0 chain. Due timers fire; timers
// clamped into level 0 by a single-level topology go back into the
// wheel.
func (w *Wheel) expire(chain *element, tick uint64) {
	for e := chain; e != nil; {
		next := e.next
		e.prev, e.next = nil, nil
		if e.due <= tick {
			w.settle(e)
		} else {
			w.replace(e, tick)
		}
		e = next
	}
}

// cascade redistributes a drained higher-level chain: cancelled
// timers are dropped, timers that are already due fire, and the rest
// move to the slot matching their due tick.
func (w *Wheel) cascade(chain *element, tick uint64) {
	for e := chain; e != nil; {
		next := e.next
		e.prev, e.next = nil, nil
		switch {
		case e.load() != Armed:
			w.settle(e)
		case e.due <= tick:
			w.settle(e)
		default:
			w.replace(e, tick)
		}
		e = next
	}
}

// settle fires e or, when it was cancelled while detached, reclaims
// it. Either way the slot's reference is released.
func (w *Wheel) settle(e *element) {
	if e.fire() {
		w.counters.fired.Add(1)
	} else {
		w.counters.reclaimed.Add(1)
	}
	w.release(e)
}

// replace puts e back into the wheel relative to tick. A cancelled
// element is dropped instead.
func (w *Wheel) replace(e *element, tick uint64) {
	if e.load() != Armed {
		w.counters.reclaimed.Add(1)
		w.release(e)
		return
	}
	levelIndex, index := locate(e.due, tick, len(w.levels))
	w.levels[levelIndex].slots[index].push(e)
	w.counters.cascaded.Add(1)
}
