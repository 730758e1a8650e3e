// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when no explicit path is
// given.
const EnvironmentVariable = "TIMEWHEEL_CONFIG"

// Config is the configuration for the timewheel benchmark harness.
type Config struct {
	// Wheel configures the timing wheel under test.
	Wheel WheelConfig `yaml:"wheel" json:"wheel"`

	// Bench configures the synthetic workload.
	Bench BenchConfig `yaml:"bench" json:"bench"`

	// FireLog configures the optional per-fire record file.
	FireLog FireLogConfig `yaml:"fire_log" json:"fire_log"`

	// Log configures operational logging.
	Log LogConfig `yaml:"log" json:"log"`
}

// WheelConfig configures construction of the timing wheel.
type WheelConfig struct {
	// Precision is the tick duration.
	// Default: 1ms
	Precision Duration `yaml:"precision" json:"precision"`

	// Horizon is how far ahead the wheel addresses exactly. Zero
	// selects the library default of four years.
	Horizon Duration `yaml:"horizon" json:"horizon"`

	// Pool sizes the element freelist.
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// LockOSThread locks the advance loop to its OS thread.
	LockOSThread bool `yaml:"lock_os_thread" json:"lock_os_thread"`

	// PinCPU pins the locked advance loop thread to CPU. Linux only.
	PinCPU bool `yaml:"pin_cpu" json:"pin_cpu"`
	CPU    int  `yaml:"cpu" json:"cpu"`

	// LagWarning is the tick backlog that triggers a warning.
	// Default: 100
	LagWarning uint64 `yaml:"lag_warning" json:"lag_warning"`
}

// PoolConfig sizes the element pool.
type PoolConfig struct {
	Min int `yaml:"min" json:"min"`

	// Default: 4096
	Max int `yaml:"max" json:"max"`
}

// BenchConfig configures the synthetic workload.
type BenchConfig struct {
	// Timers is the total number of timers started.
	Timers int `yaml:"timers" json:"timers"`

	// Starters is the number of goroutines calling Start concurrently.
	Starters int `yaml:"starters" json:"starters"`

	// CancelRatio is the fraction of timers cancelled after start, in
	// [0, 1].
	CancelRatio float64 `yaml:"cancel_ratio" json:"cancel_ratio"`

	// MaxDelay bounds the uniformly drawn timer delays.
	MaxDelay Duration `yaml:"max_delay" json:"max_delay"`

	// Settle is how long the harness waits past MaxDelay for the last
	// timers before checking the result.
	Settle Duration `yaml:"settle" json:"settle"`

	// DispatchWorkers hands callbacks off the advance loop to a worker
	// pool of this size. Zero runs the measurement inline.
	DispatchWorkers int `yaml:"dispatch_workers" json:"dispatch_workers"`

	// Seed makes delay and cancel choices reproducible.
	Seed uint64 `yaml:"seed" json:"seed"`

	// Format is the report format: text, json, or cbor.
	Format string `yaml:"format" json:"format"`
}

// FireLogConfig configures the fire log.
type FireLogConfig struct {
	// Path is the file to write. Empty disables the log. ${VAR} and
	// ${VAR:-default} are expanded.
	Path string `yaml:"path" json:"path"`

	// Compression is none, lz4, or zstd.
	// Default: zstd
	Compression string `yaml:"compression" json:"compression"`
}

// LogConfig configures the operational logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" json:"level"`

	// Format is auto, text, or json. Auto picks text on a terminal
	// and JSON otherwise.
	Format string `yaml:"format" json:"format"`
}

// Duration is a time.Duration written as a Go duration string
// ("10ms", "1h30m") in config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the default configuration. LoadFile decodes the
// file on top of it, so absent keys keep these values.
func Default() *Config {
	return &Config{
		Wheel: WheelConfig{
			Precision:  Duration(time.Millisecond),
			Pool:       PoolConfig{Min: 0, Max: 4096},
			LagWarning: 100,
		},
		Bench: BenchConfig{
			Timers:      100000,
			Starters:    8,
			CancelRatio: 0.5,
			MaxDelay:    Duration(2 * time.Second),
			Settle:      Duration(100 * time.Millisecond),
			Seed:        1,
			Format:      "text",
		},
		FireLog: FireLogConfig{
			Compression: "zstd",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by TIMEWHEEL_CONFIG.
// Fails when the variable is unset; there is no search path.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from path on top of Default. Files
// ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas allowed; everything else as YAML.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	return cfg, nil
}

// loadFile decodes a single configuration file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.FireLog.Path = expandVars(c.FireLog.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors and reports all of
// them at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Wheel.Precision <= 0 {
		errs = append(errs, fmt.Errorf("wheel.precision must be positive"))
	}
	if c.Wheel.Horizon < 0 {
		errs = append(errs, fmt.Errorf("wheel.horizon must not be negative"))
	}
	if c.Wheel.Pool.Min < 0 || c.Wheel.Pool.Max < 0 {
		errs = append(errs, fmt.Errorf("wheel.pool sizes must not be negative"))
	}
	if c.Wheel.PinCPU {
		if !c.Wheel.LockOSThread {
			errs = append(errs, fmt.Errorf("wheel.pin_cpu requires wheel.lock_os_thread"))
		}
		if c.Wheel.CPU < 0 {
			errs = append(errs, fmt.Errorf("wheel.cpu must not be negative"))
		}
	}

	if c.Bench.Timers <= 0 {
		errs = append(errs, fmt.Errorf("bench.timers must be positive"))
	}
	if c.Bench.Starters <= 0 {
		errs = append(errs, fmt.Errorf("bench.starters must be positive"))
	}
	if c.Bench.CancelRatio < 0 || c.Bench.CancelRatio > 1 {
		errs = append(errs, fmt.Errorf("bench.cancel_ratio must be within [0, 1], got %v", c.Bench.CancelRatio))
	}
	if c.Bench.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("bench.max_delay must not be negative"))
	}
	if c.Bench.Settle < 0 {
		errs = append(errs, fmt.Errorf("bench.settle must not be negative"))
	}
	if c.Bench.DispatchWorkers < 0 {
		errs = append(errs, fmt.Errorf("bench.dispatch_workers must not be negative"))
	}
	formats := []string{"text", "json", "cbor"}
	if !contains(formats, c.Bench.Format) {
		errs = append(errs, fmt.Errorf("bench.format must be one of: %v", formats))
	}

	compressions := []string{"none", "lz4", "zstd"}
	if !contains(compressions, c.FireLog.Compression) {
		errs = append(errs, fmt.Errorf("fire_log.compression must be one of: %v", compressions))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	logFormats := []string{"auto", "text", "json"}
	if !contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
