// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/timewheel/lib/clock"
)

// defaultLagWarning is the backlog, in ticks, past which the advance
// loop logs that it has fallen behind.
const defaultLagWarning = 100

// Config holds the parameters for [New]. Precision and Clock are
// required.
type Config struct {
	// Precision is the duration of one tick, the finest granularity
	// the wheel resolves.
	Precision time.Duration

	// Horizon is how far ahead timers are addressed exactly. Later
	// deadlines are clamped to the top level and re-placed as the
	// wheel turns. Zero selects DefaultHorizon.
	Horizon time.Duration

	// Clock provides monotonic time. Production callers pass
	// clock.Real(); tests pass clock.Fake().
	Clock clock.Clock

	// Logger receives advance loop operational messages. Nil
	// discards them. Callback activity is never logged.
	Logger *slog.Logger

	// PoolMin and PoolMax are the initial element pool sizing hints.
	// See SetPoolSize. A zero PoolMax selects DefaultPoolMax.
	PoolMin int
	PoolMax int

	// LockOSThread pins the advance loop's goroutine to its OS thread
	// for the lifetime of Run.
	LockOSThread bool

	// PinCPU restricts the advance loop's thread to CPU. Only honoured
	// together with LockOSThread, and only on Linux.
	PinCPU bool
	CPU    int

	// LagWarning is the tick backlog past which the loop logs a
	// warning. Zero selects 100 ticks.
	LagWarning uint64
}

// level is one tier of the wheel. Its cursor is the level's bit
// group of the wheel's current tick; see tickCursor.
type level struct {
	slots []*slot
}

// tickCursor is the wheel's current tick. Every level's cursor is a
// bit group of it. Only the goroutine inside Run calls advance.
type tickCursor struct {
	tick atomic.Uint64
}

func (c *tickCursor) load() uint64 { return c.tick.Load() }

func (c *tickCursor) advance(tick uint64) { c.tick.Store(tick) }

// counters are the wheel's monotonically increasing statistics.
type counters struct {
	started   atomic.Uint64
	fired     atomic.Uint64
	cancelled atomic.Uint64
	erased    atomic.Uint64
	reclaimed atomic.Uint64
	cascaded  atomic.Uint64
}

// Wheel is a hierarchical timing wheel. Start, Schedule, and Cancel
// are safe for concurrent use with each other and with Run.
type Wheel struct {
	clock     clock.Clock
	logger    *slog.Logger
	epoch     time.Time
	precision time.Duration
	horizon   time.Duration
	levels    []level
	pool      *pool
	cursor    tickCursor
	counters  counters

	lockOSThread bool
	pinCPU       bool
	cpu          int
	lagWarning   uint64

	running atomic.Bool
	done    chan struct{}
}

// New builds a wheel whose epoch is the clock's current time. It
// fails when the precision and horizon leave no usable topology.
// The advance loop is not started; call Run in a goroutine.
func New(config Config) (*Wheel, error) {
	if config.Precision <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidPrecision, config.Precision)
	}
	horizon := config.Horizon
	if horizon == 0 {
		horizon = DefaultHorizon
	}
	if horizon < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidHorizon, horizon)
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("timerwheel: Clock is required")
	}

	levelTotal, err := levelCount(config.Precision, horizon)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolMax := config.PoolMax
	if poolMax == 0 {
		poolMax = DefaultPoolMax
	}
	lagWarning := config.LagWarning
	if lagWarning == 0 {
		lagWarning = defaultLagWarning
	}

	wheel := &Wheel{
		clock:        config.Clock,
		logger:       logger,
		epoch:        config.Clock.Now(),
		precision:    config.Precision,
		horizon:      horizon,
		levels:       make([]level, levelTotal),
		pool:         newPool(config.PoolMin, poolMax),
		lockOSThread: config.LockOSThread,
		pinCPU:       config.PinCPU,
		cpu:          config.CPU,
		lagWarning:   lagWarning,
		done:         make(chan struct{}),
	}
	for index := range wheel.levels {
		size := levelSize
		if index == 0 {
			size = level0Size
		}
		slots := make([]*slot, size)
		for position := range slots {
			slots[position] = &slot{level: index, index: position}
		}
		wheel.levels[index].slots = slots
	}
	return wheel, nil
}

// Levels returns the number of levels in the wheel.
func (w *Wheel) Levels() int { return len(w.levels) }

// Precision returns the duration of one tick.
func (w *Wheel) Precision() time.Duration { return w.precision }

// Horizon returns the configured horizon.
func (w *Wheel) Horizon() time.Duration { return w.horizon }

// CurrentTick returns the last tick the advance loop processed. It
// is cheap enough to call from a callback.
func (w *Wheel) CurrentTick() uint64 { return w.cursor.load() }

// Span returns the total duration the level topology addresses
// before clamping: precision × 4 × 64^(levels-1), saturating.
func (w *Wheel) Span() time.Duration {
	span := saturatingMul(w.precision, level0Size)
	for range len(w.levels) - 1 {
		span = saturatingMul(span, levelSize)
	}
	return span
}

// SetPoolSize sets the element pool sizing hints. When the freelist
// runs dry it is refilled to min elements in one batch; at most max
// released elements are kept. Allocation never blocks and continues
// past max. Affects only later allocations and releases.
func (w *Wheel) SetPoolSize(min, max int) {
	w.pool.setSize(min, max)
}

// Start schedules callback to run on the advance loop once delay has
// elapsed and returns a Handle that can cancel it. A non-positive
// delay fires on the next tick. Deadlines beyond the horizon are
// clamped to the top level and re-placed until they come into range.
//
// The callback runs synchronously on the advance loop; long work
// delays every later timer and should be handed off by the caller.
func (w *Wheel) Start(delay time.Duration, callback func()) *Handle {
	if callback == nil {
		panic("timerwheel: Start called with nil callback")
	}
	e := w.pool.get()
	e.arm(callback, 2)
	handle := newHandle(w, e)
	w.place(e, delay)
	return handle
}

// Schedule is Start without a Handle. The timer cannot be cancelled
// and its element is recycled as soon as it fires.
func (w *Wheel) Schedule(delay time.Duration, callback func()) {
	if callback == nil {
		panic("timerwheel: Schedule called with nil callback")
	}
	e := w.pool.get()
	e.arm(callback, 1)
	w.place(e, delay)
}

// Cancel stops the timer behind handle. Returns true when this call
// cancelled it, or when handle is nil or empty. Returns false when
// the timer already fired or was already cancelled. Never blocks on
// the advance loop.
func (w *Wheel) Cancel(handle *Handle) bool {
	if handle == nil || handle.ref == nil {
		return true
	}
	defer keepAlive(handle)

	e := handle.ref.element.Load()
	if e == nil {
		return true
	}
	return w.cancel(e)
}

// cancel transitions e to Cancelled and removes it from its slot
// when it is still queued. An element the loop has already drained
// is dropped by the loop when it sees the state.
func (w *Wheel) cancel(e *element) bool {
	if !e.cancel() {
		return false
	}
	w.counters.cancelled.Add(1)
	if w.unlink(e) {
		w.counters.erased.Add(1)
		w.release(e)
	}
	return true
}

// unlink removes e from whatever slot currently holds it. The loop
// may move the element between the load and the lock, so the lookup
// repeats until the element is erased or found detached.
func (w *Wheel) unlink(e *element) bool {
	for {
		s := e.slot.Load()
		if s == nil {
			return false
		}
		if s.erase(e) {
			return true
		}
	}
}

// release drops one reference to e and recycles it at zero.
func (w *Wheel) release(e *element) {
	if e.release() {
		w.pool.put(e)
	}
}

// place computes the due tick for delay and enqueues e. The enqueue
// re-checks the current tick under the slot lock: if the loop moved
// on in between, the slot might already have been visited, so the
// placement is recomputed.
func (w *Wheel) place(e *element, delay time.Duration) {
	e.due = w.dueTick(w.clock.Now(), delay)
	w.counters.started.Add(1)

	levelTotal := len(w.levels)
	for {
		current := w.cursor.load()
		levelIndex, index := locate(e.due, current, levelTotal)
		s := w.levels[levelIndex].slots[index]

		s.mu.Lock()
		if w.cursor.load() == current {
			s.pushLocked(e)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// dueTick returns the first tick boundary at or after now + delay.
// Rounding up means a timer never fires before its delay elapses.
func (w *Wheel) dueTick(now time.Time, delay time.Duration) uint64 {
	if delay < 0 {
		delay = 0
	}
	elapsed := now.Sub(w.epoch)
	if elapsed < 0 {
		elapsed = 0
	}
	if delay > math.MaxInt64-elapsed {
		delay = math.MaxInt64 - elapsed
	}
	total := elapsed + delay
	ticks := uint64(total / w.precision)
	if total%w.precision != 0 {
		ticks++
	}
	return ticks
}

// tickAt returns the number of whole ticks elapsed between the epoch
// and now.
func (w *Wheel) tickAt(now time.Time) uint64 {
	elapsed := now.Sub(w.epoch)
	if elapsed <= 0 {
		return 0
	}
	return uint64(elapsed / w.precision)
}

// boundary returns the time at which tick begins.
func (w *Wheel) boundary(tick uint64) time.Time {
	if tick > uint64(math.MaxInt64/w.precision) {
		return w.epoch.Add(time.Duration(math.MaxInt64))
	}
	return w.epoch.Add(time.Duration(tick) * w.precision)
}

// Stats returns a snapshot of the wheel's counters. Counters are read
// individually, so a snapshot taken while timers are moving can be
// off by the operations in flight.
func (w *Wheel) Stats() Stats {
	started := w.counters.started.Load()
	fired := w.counters.fired.Load()
	cancelled := w.counters.cancelled.Load()
	pending := uint64(0)
	if settled := fired + cancelled; started > settled {
		pending = started - settled
	}
	return Stats{
		Started:     started,
		Fired:       fired,
		Cancelled:   cancelled,
		Erased:      w.counters.erased.Load(),
		Reclaimed:   w.counters.reclaimed.Load(),
		Cascaded:    w.counters.cascaded.Load(),
		Pending:     pending,
		CurrentTick: w.cursor.load(),
		Levels:      len(w.levels),
		Precision:   w.precision,
		Pool:        w.pool.stats(),
	}
}
