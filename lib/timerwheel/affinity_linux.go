// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package timerwheel

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pinToCPU restricts the calling thread to cpu. The caller must have
// locked its goroutine to the thread.
func pinToCPU(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("timerwheel: invalid CPU %d", cpu)
	}
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("timerwheel: setting affinity to CPU %d: %w", cpu, err)
	}
	return nil
}
