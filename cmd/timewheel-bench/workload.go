// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/bureau-foundation/timewheel/lib/clock"
	"github.com/bureau-foundation/timewheel/lib/config"
	"github.com/bureau-foundation/timewheel/lib/firelog"
	"github.com/bureau-foundation/timewheel/lib/timerwheel"
)

// outcome is everything a workload run observed.
type outcome struct {
	wheel      wheelShape
	stats      timerwheel.Stats
	callbacks  uint64
	cancelWins uint64

	// lateness holds, for each fired timer, how long after
	// start+delay its callback observed the clock.
	lateness []time.Duration

	startPhase time.Duration
	total      time.Duration

	fireLog     *firelog.Summary
	fireLogPath string
}

// wheelShape is the topology the wheel was built with.
type wheelShape struct {
	precision time.Duration
	horizon   time.Duration
	span      time.Duration
	levels    int
}

// runWorkload builds a wheel from cfg, runs the configured workload
// against it, and waits for the timers to settle.
func runWorkload(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*outcome, error) {
	wheel, err := timerwheel.New(timerwheel.Config{
		Precision:    cfg.Wheel.Precision.Std(),
		Horizon:      cfg.Wheel.Horizon.Std(),
		Clock:        clk,
		Logger:       logger.With("component", "timerwheel"),
		PoolMin:      cfg.Wheel.Pool.Min,
		PoolMax:      cfg.Wheel.Pool.Max,
		LockOSThread: cfg.Wheel.LockOSThread,
		PinCPU:       cfg.Wheel.PinCPU,
		CPU:          cfg.Wheel.CPU,
		LagWarning:   cfg.Wheel.LagWarning,
	})
	if err != nil {
		return nil, usageError(fmt.Errorf("building wheel: %w", err))
	}
	logger.Info("wheel built",
		"precision", wheel.Precision(),
		"levels", wheel.Levels(),
		"span", wheel.Span(),
	)

	var fires *firelog.Writer
	if cfg.FireLog.Path != "" {
		compression, err := firelog.ParseCompression(cfg.FireLog.Compression)
		if err != nil {
			return nil, usageError(err)
		}
		fires, err = firelog.Create(cfg.FireLog.Path, compression)
		if err != nil {
			return nil, err
		}
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	loopResult := make(chan error, 1)
	go func() { loopResult <- wheel.Run(runCtx) }()

	recorder := newRecorder(cfg.Bench.DispatchWorkers, cfg.Bench.Timers, fires)
	timers := newTimerTable(cfg.Bench.Timers)

	began := clk.Now()
	cancelWins := startTimers(cfg.Bench, wheel, clk, timers, recorder)
	startPhase := clock.Since(clk, began)
	logger.Info("timers started",
		"timers", cfg.Bench.Timers,
		"cancelled", cancelWins,
		"elapsed", startPhase,
	)

	settled := awaitSettle(runCtx, wheel, clk, cfg.Bench.MaxDelay.Std()+cfg.Bench.Settle.Std())
	stop()
	<-wheel.Done()
	if err := <-loopResult; err != nil && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("advance loop: %w", err)
	}
	if ctx.Err() != nil {
		finishRecording(recorder, fires)
		return nil, fmt.Errorf("interrupted: %w", ctx.Err())
	}
	if !settled {
		logger.Warn("timers still pending after settle window", "pending", wheel.Stats().Pending)
	}

	result := &outcome{
		wheel: wheelShape{
			precision: wheel.Precision(),
			horizon:   wheel.Horizon(),
			span:      wheel.Span(),
			levels:    wheel.Levels(),
		},
		stats:      wheel.Stats(),
		callbacks:  timers.callbacks.Load(),
		cancelWins: cancelWins,
		lateness:   timers.firedLateness(),
		startPhase: startPhase,
		total:      clock.Since(clk, began),
	}

	summary, err := finishRecording(recorder, fires)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		if err := verifyFireLog(cfg.FireLog.Path, *summary, result.callbacks); err != nil {
			return nil, err
		}
		logger.Info("fire log verified",
			"path", cfg.FireLog.Path,
			"records", summary.Records,
			"digest", summary.Digest.String(),
		)
		result.fireLog = summary
		result.fireLogPath = cfg.FireLog.Path
	}
	return result, nil
}

// timerTable records each timer's callback. Entries are written once
// by the advance loop and read after it has stopped.
type timerTable struct {
	fired     []bool
	lateness  []time.Duration
	callbacks atomic.Uint64
}

func newTimerTable(size int) *timerTable {
	return &timerTable{
		fired:    make([]bool, size),
		lateness: make([]time.Duration, size),
	}
}

func (t *timerTable) firedLateness() []time.Duration {
	result := make([]time.Duration, 0, t.callbacks.Load())
	for index, fired := range t.fired {
		if fired {
			result = append(result, t.lateness[index])
		}
	}
	return result
}

// startTimers runs bench.Starters goroutines that together start
// bench.Timers timers, cancel roughly bench.CancelRatio of them, and
// release every handle. Returns how many cancels won.
func startTimers(bench config.BenchConfig, wheel *timerwheel.Wheel, clk clock.Clock, timers *timerTable, recorder *recorder) uint64 {
	var cancelWins atomic.Uint64
	maxDelay := int64(bench.MaxDelay.Std())

	var starters conc.WaitGroup
	for starter := range bench.Starters {
		first, last := share(bench.Timers, bench.Starters, starter)
		starters.Go(func() {
			random := rand.New(rand.NewPCG(bench.Seed, uint64(starter)))
			handles := make([]*timerwheel.Handle, 0, last-first)
			cancels := make([]bool, 0, last-first)

			for index := first; index < last; index++ {
				var delay time.Duration
				if maxDelay > 0 {
					delay = time.Duration(random.Int64N(maxDelay + 1))
				}
				startedAt := clk.Now()
				handles = append(handles, wheel.Start(delay, func() {
					late := clk.Now().Sub(startedAt) - delay
					timers.lateness[index] = late
					timers.fired[index] = true
					timers.callbacks.Add(1)
					recorder.record(firelog.Record{
						Timer:   uint64(index),
						Tick:    wheel.CurrentTick(),
						DelayNS: int64(delay),
						LateNS:  int64(late),
					})
				}))
				cancels = append(cancels, random.Float64() < bench.CancelRatio)
			}

			for position, handle := range handles {
				if cancels[position] && handle.Stop() {
					cancelWins.Add(1)
				}
				handle.Release()
			}
		})
	}
	starters.Wait()
	return cancelWins.Load()
}

// share returns the half-open index range of part out of parts when
// total items are split as evenly as possible.
func share(total, parts, part int) (first, last int) {
	size, remainder := total/parts, total%parts
	first = part*size + min(part, remainder)
	last = first + size
	if part < remainder {
		last++
	}
	return first, last
}

// awaitSettle polls until no timers are pending or window elapses.
// Returns whether the wheel settled.
func awaitSettle(ctx context.Context, wheel *timerwheel.Wheel, clk clock.Clock, window time.Duration) bool {
	deadline := clk.Now().Add(window)
	interval := max(wheel.Precision(), time.Millisecond)
	for wheel.Stats().Pending > 0 {
		if !clk.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-clk.After(interval):
		}
	}
	return true
}

// recorder moves fire records off the advance loop. With workers it
// queues records for a conc pool that appends them to the fire log;
// without workers it appends inline. A nil log makes it a no-op.
type recorder struct {
	log     *firelog.Writer
	queue   chan firelog.Record
	workers *pool.ErrorPool

	mu  sync.Mutex
	err error
}

func newRecorder(workers, capacity int, log *firelog.Writer) *recorder {
	r := &recorder{log: log}
	if log == nil || workers == 0 {
		return r
	}
	r.queue = make(chan firelog.Record, capacity)
	r.workers = pool.New().WithErrors().WithMaxGoroutines(workers)
	for range workers {
		r.workers.Go(func() error {
			for record := range r.queue {
				if err := log.Append(record); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return r
}

// record is called on the advance loop. The queue holds one slot per
// timer, so the send never blocks.
func (r *recorder) record(record firelog.Record) {
	if r.log == nil {
		return
	}
	if r.queue != nil {
		r.queue <- record
		return
	}
	if err := r.log.Append(record); err != nil {
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
}

// close drains the queue and returns the first append failure.
func (r *recorder) close() error {
	if r.queue != nil {
		close(r.queue)
		return r.workers.Wait()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// finishRecording drains the recorder and closes the fire log. The
// log is closed even when recording failed. Returns a nil summary
// when there is no fire log.
func finishRecording(recorder *recorder, fires *firelog.Writer) (*firelog.Summary, error) {
	recordErr := recorder.close()
	if fires == nil {
		if recordErr != nil {
			return nil, fmt.Errorf("recording fires: %w", recordErr)
		}
		return nil, nil
	}
	summary, closeErr := fires.Close()
	if recordErr != nil {
		return nil, fmt.Errorf("recording fires: %w", recordErr)
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return &summary, nil
}

// verifyFireLog reads the log back and checks it against the writer's
// summary and the number of callbacks observed.
func verifyFireLog(path string, written firelog.Summary, callbacks uint64) error {
	records, summary, err := firelog.ReadAll(path)
	if err != nil {
		return fmt.Errorf("verifying fire log: %w", err)
	}
	if summary.Digest != written.Digest {
		return fmt.Errorf("verifying fire log: digest %s, writer reported %s", summary.Digest, written.Digest)
	}
	if uint64(len(records)) != callbacks {
		return fmt.Errorf("verifying fire log: %d records for %d callbacks", len(records), callbacks)
	}
	return nil
}
