// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Wheel.Precision.Std() != time.Millisecond {
		t.Errorf("expected precision=1ms, got %v", cfg.Wheel.Precision.Std())
	}
	if cfg.Wheel.Pool.Max != 4096 {
		t.Errorf("expected pool.max=4096, got %d", cfg.Wheel.Pool.Max)
	}
	if cfg.FireLog.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.FireLog.Compression)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresEnvironment(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when TIMEWHEEL_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "TIMEWHEEL_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "bench.yaml", `
wheel:
  precision: 10ms
  horizon: 24h
  pool:
    min: 64
    max: 1024
  lock_os_thread: true
bench:
  timers: 5000
  cancel_ratio: 0.25
  max_delay: 1.5s
fire_log:
  path: ${HOME}/fires.log
  compression: lz4
`)
	t.Setenv(EnvironmentVariable, path)
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Wheel.Precision.Std() != 10*time.Millisecond {
		t.Errorf("expected precision=10ms, got %v", cfg.Wheel.Precision.Std())
	}
	if cfg.Wheel.Horizon.Std() != 24*time.Hour {
		t.Errorf("expected horizon=24h, got %v", cfg.Wheel.Horizon.Std())
	}
	if cfg.Wheel.Pool.Min != 64 || cfg.Wheel.Pool.Max != 1024 {
		t.Errorf("expected pool 64/1024, got %d/%d", cfg.Wheel.Pool.Min, cfg.Wheel.Pool.Max)
	}
	if !cfg.Wheel.LockOSThread {
		t.Error("expected lock_os_thread=true")
	}
	if cfg.Bench.Timers != 5000 || cfg.Bench.CancelRatio != 0.25 {
		t.Errorf("expected timers=5000 cancel_ratio=0.25, got %d %v", cfg.Bench.Timers, cfg.Bench.CancelRatio)
	}
	if cfg.Bench.MaxDelay.Std() != 1500*time.Millisecond {
		t.Errorf("expected max_delay=1.5s, got %v", cfg.Bench.MaxDelay.Std())
	}
	// Unset keys keep their defaults.
	if cfg.Bench.Starters != 8 {
		t.Errorf("expected default starters=8, got %d", cfg.Bench.Starters)
	}
	if cfg.FireLog.Path != "/home/tester/fires.log" {
		t.Errorf("expected expanded fire log path, got %s", cfg.FireLog.Path)
	}
	if cfg.FireLog.Compression != "lz4" {
		t.Errorf("expected compression=lz4, got %s", cfg.FireLog.Compression)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "bench.jsonc", `{
  // Coarse wheel for a long soak.
  "wheel": {"precision": "100ms", "pool": {"max": 16,}},
  "bench": {"timers": 42, "format": "json"},
  /* no fire log */
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Wheel.Precision.Std() != 100*time.Millisecond {
		t.Errorf("expected precision=100ms, got %v", cfg.Wheel.Precision.Std())
	}
	if cfg.Wheel.Pool.Max != 16 {
		t.Errorf("expected pool.max=16, got %d", cfg.Wheel.Pool.Max)
	}
	if cfg.Bench.Timers != 42 || cfg.Bench.Format != "json" {
		t.Errorf("expected timers=42 format=json, got %d %s", cfg.Bench.Timers, cfg.Bench.Format)
	}
	if cfg.Wheel.LagWarning != 100 {
		t.Errorf("expected default lag_warning=100, got %d", cfg.Wheel.LagWarning)
	}
}

func TestLoadFile_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "bench.yaml", "wheel:\n  precision: soon\n")

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "soon") {
		t.Errorf("error should name the bad value: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Wheel.Precision = 0
	cfg.Wheel.PinCPU = true
	cfg.Bench.CancelRatio = 1.5
	cfg.FireLog.Compression = "gzip"
	cfg.Log.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{
		"wheel.precision",
		"wheel.pin_cpu requires wheel.lock_os_thread",
		"bench.cancel_ratio",
		"fire_log.compression",
		"log.level",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error missing %q:\n%v", want, err)
		}
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("TIMEWHEEL_TEST_DIR", "/var/tmp")

	tests := []struct {
		input string
		want  string
	}{
		{"${HOME}/log", "/home/x/log"},
		{"${TIMEWHEEL_TEST_DIR}/log", "/var/tmp/log"},
		{"${TIMEWHEEL_TEST_UNSET:-/fallback}/log", "/fallback/log"},
		{"plain/path", "plain/path"},
	}
	vars := map[string]string{"HOME": "/home/x"}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1h30m")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Std() != 90*time.Minute {
		t.Errorf("expected 90m, got %v", d.Std())
	}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "1h30m0s" {
		t.Errorf("expected 1h30m0s, got %s", text)
	}
}
