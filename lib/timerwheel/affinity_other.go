// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package timerwheel

import (
	"errors"
	"fmt"
)

func pinToCPU(cpu int) error {
	return fmt.Errorf("timerwheel: pinning to CPU %d: %w", cpu, errors.ErrUnsupported)
}
