// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/timewheel/lib/codec"
	"github.com/bureau-foundation/timewheel/lib/config"
	"github.com/bureau-foundation/timewheel/lib/timerwheel"
	"github.com/bureau-foundation/timewheel/lib/version"
)

// report is the benchmark result. The json tags name the fields in
// both the JSON and CBOR formats.
type report struct {
	Build      version.Build    `json:"build"`
	Wheel      wheelInfo        `json:"wheel"`
	Workload   workloadInfo     `json:"workload"`
	Stats      timerwheel.Stats `json:"stats"`
	Callbacks  uint64           `json:"callbacks"`
	CancelWins uint64           `json:"cancel_wins"`

	StartPhaseNS    int64   `json:"start_phase_ns"`
	TotalNS         int64   `json:"total_ns"`
	StartsPerSecond float64 `json:"starts_per_second"`

	Lateness lateness     `json:"lateness"`
	FireLog  *fireLogInfo `json:"fire_log,omitempty"`

	// Violations lists failed settlement checks. Empty on success.
	Violations []string `json:"violations,omitempty"`
}

type wheelInfo struct {
	PrecisionNS int64 `json:"precision_ns"`
	HorizonNS   int64 `json:"horizon_ns"`
	SpanNS      int64 `json:"span_ns"`
	Levels      int   `json:"levels"`
	PoolMin     int   `json:"pool_min"`
	PoolMax     int   `json:"pool_max"`
}

type workloadInfo struct {
	Timers          int     `json:"timers"`
	Starters        int     `json:"starters"`
	CancelRatio     float64 `json:"cancel_ratio"`
	MaxDelayNS      int64   `json:"max_delay_ns"`
	DispatchWorkers int     `json:"dispatch_workers"`
	Seed            uint64  `json:"seed"`
}

// lateness summarises how long after their deadline callbacks ran.
type lateness struct {
	Samples int   `json:"samples"`
	MinNS   int64 `json:"min_ns"`
	P50NS   int64 `json:"p50_ns"`
	P90NS   int64 `json:"p90_ns"`
	P99NS   int64 `json:"p99_ns"`
	MaxNS   int64 `json:"max_ns"`
}

type fireLogInfo struct {
	Path        string `json:"path"`
	Records     uint64 `json:"records"`
	Compression string `json:"compression"`
	Digest      string `json:"digest"`
	Bytes       int64  `json:"bytes"`
}

func buildReport(cfg *config.Config, result *outcome) *report {
	build := version.Current()
	if digest, _, err := version.SelfDigest(); err == nil {
		build.Digest = digest
	}

	r := &report{
		Build: build,
		Wheel: wheelInfo{
			PrecisionNS: int64(result.wheel.precision),
			HorizonNS:   int64(result.wheel.horizon),
			SpanNS:      int64(result.wheel.span),
			Levels:      result.wheel.levels,
			PoolMin:     cfg.Wheel.Pool.Min,
			PoolMax:     cfg.Wheel.Pool.Max,
		},
		Workload: workloadInfo{
			Timers:          cfg.Bench.Timers,
			Starters:        cfg.Bench.Starters,
			CancelRatio:     cfg.Bench.CancelRatio,
			MaxDelayNS:      int64(cfg.Bench.MaxDelay.Std()),
			DispatchWorkers: cfg.Bench.DispatchWorkers,
			Seed:            cfg.Bench.Seed,
		},
		Stats:        result.stats,
		Callbacks:    result.callbacks,
		CancelWins:   result.cancelWins,
		StartPhaseNS: int64(result.startPhase),
		TotalNS:      int64(result.total),
		Lateness:     summarise(result.lateness),
		Violations:   settlementViolations(cfg.Bench.Timers, result),
	}
	if result.startPhase > 0 {
		r.StartsPerSecond = float64(cfg.Bench.Timers) / result.startPhase.Seconds()
	}
	if result.fireLog != nil {
		r.FireLog = &fireLogInfo{
			Path:        result.fireLogPath,
			Records:     result.fireLog.Records,
			Compression: result.fireLog.Compression.String(),
			Digest:      result.fireLog.Digest.String(),
			Bytes:       result.fireLog.Bytes,
		}
	}
	return r
}

// settlementViolations checks that every timer settled exactly once
// and that the wheel's counters agree with what the callbacks and
// cancels observed.
func settlementViolations(timers int, result *outcome) []string {
	var violations []string
	stats := result.stats
	if stats.Started != uint64(timers) {
		violations = append(violations, fmt.Sprintf("started %d timers, wheel counted %d", timers, stats.Started))
	}
	if stats.Fired != result.callbacks {
		violations = append(violations, fmt.Sprintf("%d callbacks ran, wheel counted %d fired", result.callbacks, stats.Fired))
	}
	if stats.Cancelled != result.cancelWins {
		violations = append(violations, fmt.Sprintf("%d cancels won, wheel counted %d cancelled", result.cancelWins, stats.Cancelled))
	}
	if stats.Fired+stats.Cancelled+stats.Pending != stats.Started {
		violations = append(violations, fmt.Sprintf("fired %d + cancelled %d + pending %d != started %d",
			stats.Fired, stats.Cancelled, stats.Pending, stats.Started))
	}
	if stats.Pool.Live < stats.Pending {
		violations = append(violations, fmt.Sprintf("%d pending timers but only %d live elements", stats.Pending, stats.Pool.Live))
	}
	return violations
}

// summarise computes nearest-rank percentiles of samples.
func summarise(samples []time.Duration) lateness {
	if len(samples) == 0 {
		return lateness{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	rank := func(percentile float64) int64 {
		index := int(math.Ceil(percentile*float64(len(sorted)))) - 1
		index = max(0, min(index, len(sorted)-1))
		return int64(sorted[index])
	}
	return lateness{
		Samples: len(sorted),
		MinNS:   int64(sorted[0]),
		P50NS:   rank(0.50),
		P90NS:   rank(0.90),
		P99NS:   rank(0.99),
		MaxNS:   int64(sorted[len(sorted)-1]),
	}
}

func writeReport(w io.Writer, format string, r *report) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	case "cbor":
		return codec.NewEncoder(w).Encode(r)
	case "text":
		return writeText(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, r *report) error {
	count := func(n uint64) string { return humanize.Comma(int64(n)) }
	duration := func(ns int64) string { return time.Duration(ns).String() }

	_, err := fmt.Fprintf(w, `timewheel-bench %s (%s)
wheel:     precision %s, %d levels, span %s
workload:  %s timers from %d starters, cancel ratio %.2f, max delay %s
started:   %s in %s (%s/s)
settled:   %s fired, %s cancelled, %s pending, %s cascaded, %s reclaimed
pool:      %s allocated, %s reused, %s discarded, %s free, %s live
lateness:  min %s  p50 %s  p90 %s  p99 %s  max %s
`,
		r.Build.Version, r.Build.Commit,
		duration(r.Wheel.PrecisionNS), r.Wheel.Levels, duration(r.Wheel.SpanNS),
		humanize.Comma(int64(r.Workload.Timers)), r.Workload.Starters, r.Workload.CancelRatio, duration(r.Workload.MaxDelayNS),
		count(r.Stats.Started), duration(r.StartPhaseNS), humanize.CommafWithDigits(r.StartsPerSecond, 0),
		count(r.Stats.Fired), count(r.Stats.Cancelled), count(r.Stats.Pending), count(r.Stats.Cascaded), count(r.Stats.Reclaimed),
		count(r.Stats.Pool.Allocated), count(r.Stats.Pool.Reused), count(r.Stats.Pool.Discarded),
		humanize.Comma(int64(r.Stats.Pool.Free)), count(r.Stats.Pool.Live),
		duration(r.Lateness.MinNS), duration(r.Lateness.P50NS), duration(r.Lateness.P90NS),
		duration(r.Lateness.P99NS), duration(r.Lateness.MaxNS),
	)
	if err != nil {
		return err
	}

	if r.FireLog != nil {
		_, err = fmt.Fprintf(w, "fire log:  %s records, %s %s, blake3 %s\n",
			count(r.FireLog.Records), humanize.Bytes(uint64(r.FireLog.Bytes)), r.FireLog.Compression, r.FireLog.Digest)
		if err != nil {
			return err
		}
	}

	if len(r.Violations) == 0 {
		_, err = fmt.Fprintln(w, "checks:    ok")
		return err
	}
	for _, violation := range r.Violations {
		if _, err := fmt.Fprintf(w, "FAILED:    %s\n", violation); err != nil {
			return err
		}
	}
	return nil
}
