// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/timewheel/lib/clock"
	"github.com/bureau-foundation/timewheel/lib/testutil"
)

// startLoop runs the wheel's advance loop until the test ends.
func startLoop(t *testing.T, w *Wheel) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, w.Done(), 5*time.Second, "advance loop exit")
	})
}

// step advances the fake clock once the loop is asleep and returns
// after the loop has processed the new time and gone back to sleep.
func step(fake *clock.FakeClock, d time.Duration) {
	fake.WaitForTimers(1)
	fake.Advance(d)
	fake.WaitForTimers(1)
}

// tickLog collects fire ticks from callbacks running on the loop.
type tickLog struct {
	mu    sync.Mutex
	ticks []uint64
}

func (l *tickLog) record(w *Wheel) func() {
	return func() {
		l.mu.Lock()
		l.ticks = append(l.ticks, w.cursor.load())
		l.mu.Unlock()
	}
}

func (l *tickLog) snapshot() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]uint64(nil), l.ticks...)
}

func TestRunFiresInOrder(t *testing.T) {
	wheel, fake := newTestWheel(t, 10*time.Millisecond, 0)

	var log tickLog
	for _, delay := range []time.Duration{
		75 * time.Millisecond,
		5 * time.Millisecond,
		5000 * time.Millisecond,
		15 * time.Millisecond,
	} {
		wheel.Start(delay, log.record(wheel))
	}
	startLoop(t, wheel)

	step(fake, 10*time.Millisecond)
	if got := log.snapshot(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("after 10ms fired on ticks %v, want [1]", got)
	}

	step(fake, 70*time.Millisecond)
	if got := log.snapshot(); len(got) != 3 || got[1] != 2 || got[2] != 8 {
		t.Fatalf("after 80ms fired on ticks %v, want [1 2 8]", got)
	}

	step(fake, 4910*time.Millisecond)
	if got := log.snapshot(); len(got) != 3 {
		t.Fatalf("after 4990ms fired on ticks %v, want [1 2 8]", got)
	}
	step(fake, 10*time.Millisecond)
	if got := log.snapshot(); len(got) != 4 || got[3] != 500 {
		t.Fatalf("after 5000ms fired on ticks %v, want [1 2 8 500]", got)
	}
}

func TestRunCatchesUp(t *testing.T) {
	fake := clock.Fake(testEpoch)
	var output bytes.Buffer
	wheel, err := New(Config{
		Precision: 10 * time.Millisecond,
		Clock:     fake,
		Logger:    slog.New(slog.NewTextHandler(&output, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var log tickLog
	for _, delay := range []time.Duration{
		5000 * time.Millisecond,
		15 * time.Millisecond,
		75 * time.Millisecond,
		5 * time.Millisecond,
	} {
		wheel.Start(delay, log.record(wheel))
	}
	startLoop(t, wheel)

	// A single late wake-up covering 500 ticks still fires every
	// timer on its own tick, in tick order.
	step(fake, 5*time.Second)

	got := log.snapshot()
	want := []uint64{1, 2, 8, 500}
	if len(got) != len(want) {
		t.Fatalf("fired on ticks %v, want %v", got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("fired on ticks %v, want %v", got, want)
		}
	}
	if !strings.Contains(output.String(), "advance loop behind schedule") {
		t.Errorf("no lag warning logged; output:\n%s", output.String())
	}
}

func TestRunTwice(t *testing.T) {
	wheel, fake := newTestWheel(t, time.Millisecond, 0)
	startLoop(t, wheel)
	// The first loop owns the wheel once it is asleep on the clock.
	fake.WaitForTimers(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wheel.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	wheel, fake := newTestWheel(t, time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- wheel.Run(ctx) }()

	fake.WaitForTimers(1)
	fired := false
	wheel.Start(time.Hour, func() { fired = true })
	cancel()

	err := testutil.RequireReceive(t, result, 5*time.Second, "Run result")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	testutil.RequireClosed(t, wheel.Done(), 5*time.Second, "Done after Run returned")
	if fired {
		t.Error("timer fired after shutdown")
	}
	if pending := wheel.Stats().Pending; pending != 1 {
		t.Errorf("pending = %d after shutdown, want 1", pending)
	}
}

// TestConcurrentStartCancel races starters and cancellers against a
// running advance loop and checks that every timer settles exactly
// once.
func TestConcurrentStartCancel(t *testing.T) {
	const (
		starters  = 8
		perWorker = 1250
		total     = starters * perWorker
		maxDelay  = 50 * time.Millisecond
	)

	wheel, fake := newTestWheel(t, time.Millisecond, 0)
	wheel.SetPoolSize(64, 1024)

	counts := make([]atomic.Int32, total)
	handles := make([]*Handle, total)
	var cancelWins atomic.Uint64

	// The advancer stands in for Run so the test controls time.
	stop := make(chan struct{})
	advancerDone := make(chan struct{})
	go func() {
		defer close(advancerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			advanceTicks(wheel, fake, 1)
		}
	}()

	var wg sync.WaitGroup
	for worker := range starters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			random := rand.New(rand.NewPCG(uint64(worker), 0x5eed))
			for index := worker * perWorker; index < (worker+1)*perWorker; index++ {
				delay := time.Duration(random.Int64N(int64(maxDelay)))
				handles[index] = wheel.Start(delay, func() { counts[index].Add(1) })
				if random.IntN(2) == 0 && handles[index].Stop() {
					cancelWins.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-advancerDone

	// Everything outstanding is due within maxDelay of now.
	advanceTicks(wheel, fake, uint64(maxDelay/time.Millisecond)+2)

	var callbacks uint64
	for index := range counts {
		count := counts[index].Load()
		if count > 1 {
			t.Fatalf("timer %d fired %d times", index, count)
		}
		callbacks += uint64(count)
		handleState, _ := handles[index].State()
		if count == 1 && handleState != Fired {
			t.Fatalf("timer %d fired but reports %v", index, handleState)
		}
		if count == 0 && handleState != Cancelled {
			t.Fatalf("timer %d neither fired nor cancelled: %v", index, handleState)
		}
	}
	if callbacks+cancelWins.Load() != total {
		t.Errorf("callbacks %d + cancels %d != %d timers", callbacks, cancelWins.Load(), total)
	}

	stats := wheel.Stats()
	if stats.Started != total || stats.Fired != callbacks || stats.Cancelled != cancelWins.Load() || stats.Pending != 0 {
		t.Errorf("Stats started=%d fired=%d cancelled=%d pending=%d; want %d %d %d 0",
			stats.Started, stats.Fired, stats.Cancelled, stats.Pending, total, callbacks, cancelWins.Load())
	}

	for _, handle := range handles {
		handle.Release()
	}
	if live := wheel.Stats().Pool.Live; live != 0 {
		t.Errorf("pool live = %d after releasing every handle, want 0", live)
	}
}

// TestRunRacesCancellers starts timers from several goroutines and
// hands every handle to separate cancellers while Run drives the
// wheel on a clock that keeps moving.
func TestRunRacesCancellers(t *testing.T) {
	const (
		starters   = 4
		cancellers = 4
		perStarter = 1000
		total      = starters * perStarter
		maxDelay   = 20 * time.Millisecond
	)

	wheel, fake := newTestWheel(t, time.Millisecond, 0)
	startLoop(t, wheel)

	counts := make([]atomic.Int32, total)
	cancelled := make([]atomic.Bool, total)
	handles := make([]*Handle, total)

	stop := make(chan struct{})
	advancerDone := make(chan struct{})
	go func() {
		defer close(advancerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			fake.Advance(time.Millisecond)
			runtime.Gosched()
		}
	}()

	type started struct {
		index  int
		handle *Handle
	}
	queue := make(chan started, total)

	var cancelWorkers sync.WaitGroup
	for range cancellers {
		cancelWorkers.Add(1)
		go func() {
			defer cancelWorkers.Done()
			for item := range queue {
				if item.index%2 == 0 && item.handle.Stop() {
					cancelled[item.index].Store(true)
				}
			}
		}()
	}

	var startWorkers sync.WaitGroup
	for starter := range starters {
		startWorkers.Add(1)
		go func() {
			defer startWorkers.Done()
			random := rand.New(rand.NewPCG(uint64(starter), 0xcafe))
			for index := starter * perStarter; index < (starter+1)*perStarter; index++ {
				delay := time.Duration(random.Int64N(int64(maxDelay)))
				handle := wheel.Start(delay, func() { counts[index].Add(1) })
				handles[index] = handle
				queue <- started{index: index, handle: handle}
			}
		}()
	}
	startWorkers.Wait()
	close(queue)
	cancelWorkers.Wait()
	close(stop)
	<-advancerDone

	// Everything still armed is due within maxDelay of now.
	step(fake, maxDelay+2*time.Millisecond)
	testutil.RequireEventually(t, func() bool { return wheel.Stats().Pending == 0 },
		5*time.Second, time.Millisecond, "timers pending after the last deadline")

	var callbacks, cancels uint64
	for index := range counts {
		count := counts[index].Load()
		won := cancelled[index].Load()
		switch {
		case count > 1:
			t.Fatalf("timer %d fired %d times", index, count)
		case count == 1 && won:
			t.Fatalf("timer %d fired and was cancelled", index)
		case count == 0 && !won:
			t.Fatalf("timer %d neither fired nor cancelled", index)
		}
		if index%2 == 1 && won {
			t.Fatalf("timer %d cancelled without a Stop", index)
		}
		callbacks += uint64(count)
		if won {
			cancels++
		}
	}

	stats := wheel.Stats()
	if stats.Started != total || stats.Fired != callbacks || stats.Cancelled != cancels {
		t.Errorf("Stats started=%d fired=%d cancelled=%d; want %d %d %d",
			stats.Started, stats.Fired, stats.Cancelled, total, callbacks, cancels)
	}

	for _, handle := range handles {
		handle.Release()
	}
	if live := wheel.Stats().Pool.Live; live != 0 {
		t.Errorf("pool live = %d after releasing every handle, want 0", live)
	}
}
