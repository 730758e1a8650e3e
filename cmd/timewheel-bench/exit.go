// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	exitFailure   = 1
	exitInvariant = 2
)

// errSilent marks an exitError whose cause was already reported.
var errSilent = errors.New("already reported")

// exitError carries a process exit status. main checks for the
// ExitCode method on returned errors.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// ExitCode returns the process exit status.
func (e *exitError) ExitCode() int { return e.code }

// usageError reports a bad command line or configuration.
func usageError(err error) error {
	return &exitError{code: exitFailure, err: err}
}
