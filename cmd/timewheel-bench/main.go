// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// timewheel-bench drives a timing wheel with a synthetic workload and
// reports what happened.
//
// A configurable number of starter goroutines start timers with
// uniformly drawn delays, cancel a fraction of them, and release
// their handles. The harness then waits for the remaining timers to
// fire and checks that every timer settled exactly once: the number
// of callbacks equals the wheel's fired count, the number of winning
// cancels equals its cancelled count, and every pending timer still
// holds a live pool element. A violated check exits with status 2.
//
// Optionally every firing is appended to a compressed fire log,
// which is read back and verified against its digest before the
// report is written.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/timewheel/lib/clock"
	"github.com/bureau-foundation/timewheel/lib/config"
	"github.com/bureau-foundation/timewheel/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			if !errors.Is(err, errSilent) {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the command line. Zero values mean "not given"; the
// flag set's Changed reports which ones override the config file.
type options struct {
	configPath      string
	precision       config.Duration
	horizon         config.Duration
	timers          int
	starters        int
	cancelRatio     float64
	maxDelay        config.Duration
	settle          config.Duration
	poolMin         int
	poolMax         int
	dispatchWorkers int
	lockOSThread    bool
	pinCPU          int
	seed            uint64
	fireLog         string
	fireCompression string
	format          string
	logLevel        string
	logFormat       string
	showVersion     bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("timewheel-bench", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "config file (YAML, or JSON/JSONC by extension); default $"+config.EnvironmentVariable)
	flagSet.Var(durationValue{&opts.precision}, "precision", "tick duration")
	flagSet.Var(durationValue{&opts.horizon}, "horizon", "addressable horizon (0 selects four years)")
	flagSet.IntVar(&opts.timers, "timers", 0, "total timers to start")
	flagSet.IntVar(&opts.starters, "starters", 0, "goroutines starting timers concurrently")
	flagSet.Float64Var(&opts.cancelRatio, "cancel-ratio", 0, "fraction of timers cancelled, in [0, 1]")
	flagSet.Var(durationValue{&opts.maxDelay}, "max-delay", "upper bound of the uniformly drawn delays")
	flagSet.Var(durationValue{&opts.settle}, "settle", "wait past max-delay for the last timers")
	flagSet.IntVar(&opts.poolMin, "pool-min", 0, "element pool refill batch")
	flagSet.IntVar(&opts.poolMax, "pool-max", 0, "element pool retention limit")
	flagSet.IntVar(&opts.dispatchWorkers, "dispatch-workers", 0, "workers recording fires off the advance loop (0 records inline)")
	flagSet.BoolVar(&opts.lockOSThread, "lock-os-thread", false, "lock the advance loop to an OS thread")
	flagSet.IntVar(&opts.pinCPU, "pin-cpu", 0, "pin the advance loop thread to this CPU (implies --lock-os-thread)")
	flagSet.Uint64Var(&opts.seed, "seed", 0, "seed for delays and cancel choices")
	flagSet.StringVar(&opts.fireLog, "fire-log", "", "write a record per fired timer to this file")
	flagSet.StringVar(&opts.fireCompression, "fire-log-compression", "", "fire log compression: none, lz4, or zstd")
	flagSet.StringVar(&opts.format, "format", "", "report format: text, json, or cbor")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, or error")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "log format: auto, text, or json")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := newFlagSet(&opts)
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, flagSet)
			return nil
		}
		return usageError(err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if opts.showVersion {
		version.Print(stdout, "timewheel-bench")
		return nil
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return usageError(fmt.Errorf("unexpected argument: %s", extra[0]))
	}

	cfg, err := loadConfig(flagSet, &opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return usageError(err)
	}
	logger = logger.With("command", "timewheel-bench")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := runWorkload(ctx, cfg, clock.Real(), logger)
	if err != nil {
		return err
	}

	report := buildReport(cfg, result)
	if err := writeReport(stdout, cfg.Bench.Format, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if len(report.Violations) > 0 {
		for _, violation := range report.Violations {
			logger.Error("settlement check failed", "violation", violation)
		}
		return &exitError{code: exitInvariant, err: errSilent}
	}
	return nil
}

// loadConfig reads the config file named by --config or
// TIMEWHEEL_CONFIG, falling back to defaults when neither is given,
// then applies the flags that were set explicitly.
func loadConfig(flagSet *pflag.FlagSet, opts *options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	changed := flagSet.Changed
	if changed("precision") {
		cfg.Wheel.Precision = opts.precision
	}
	if changed("horizon") {
		cfg.Wheel.Horizon = opts.horizon
	}
	if changed("timers") {
		cfg.Bench.Timers = opts.timers
	}
	if changed("starters") {
		cfg.Bench.Starters = opts.starters
	}
	if changed("cancel-ratio") {
		cfg.Bench.CancelRatio = opts.cancelRatio
	}
	if changed("max-delay") {
		cfg.Bench.MaxDelay = opts.maxDelay
	}
	if changed("settle") {
		cfg.Bench.Settle = opts.settle
	}
	if changed("pool-min") {
		cfg.Wheel.Pool.Min = opts.poolMin
	}
	if changed("pool-max") {
		cfg.Wheel.Pool.Max = opts.poolMax
	}
	if changed("dispatch-workers") {
		cfg.Bench.DispatchWorkers = opts.dispatchWorkers
	}
	if changed("lock-os-thread") {
		cfg.Wheel.LockOSThread = opts.lockOSThread
	}
	if changed("pin-cpu") {
		cfg.Wheel.LockOSThread = true
		cfg.Wheel.PinCPU = true
		cfg.Wheel.CPU = opts.pinCPU
	}
	if changed("seed") {
		cfg.Bench.Seed = opts.seed
	}
	if changed("fire-log") {
		cfg.FireLog.Path = opts.fireLog
	}
	if changed("fire-log-compression") {
		cfg.FireLog.Compression = opts.fireCompression
	}
	if changed("format") {
		cfg.Bench.Format = opts.format
	}
	if changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError(fmt.Errorf("invalid configuration:\n%w", err))
	}
	return cfg, nil
}

// durationValue adapts config.Duration to pflag.Value.
type durationValue struct {
	target *config.Duration
}

func (v durationValue) String() string {
	if v.target == nil {
		return "0s"
	}
	return v.target.Std().String()
}

func (v durationValue) Set(text string) error {
	return v.target.UnmarshalText([]byte(text))
}

func (durationValue) Type() string { return "duration" }

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `timewheel-bench drives a hierarchical timing wheel with a synthetic
workload and reports throughput, lateness, and settlement checks.

Configuration comes from --config, else $%s, else built-in
defaults. Flags given on the command line override the file.

Usage:
  timewheel-bench [flags]

Examples:
  # 100k timers over 2s with half of them cancelled
  timewheel-bench

  # Coarse wheel, pinned loop, zstd fire log, JSON report
  timewheel-bench --precision 10ms --pin-cpu 2 --fire-log fires.log --format json

Flags:
`, config.EnvironmentVariable)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
