// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// recorder captures Fatalf calls without stopping the test goroutine.
type recorder struct {
	failed  bool
	message string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed = true
	r.message = fmt.Sprintf(format, args...)
	panic(r)
}

// capture runs fn and reports whether it called Fatalf.
func capture(fn func(t TestingT)) (result *recorder) {
	result = &recorder{}
	defer func() {
		if recovered := recover(); recovered != nil && recovered != result {
			panic(recovered)
		}
	}()
	fn(result)
	return result
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "buffered value"); got != 7 {
		t.Fatalf("RequireReceive = %d, want 7", got)
	}

	result := capture(func(r TestingT) {
		RequireReceive(r, make(chan int), 10*time.Millisecond, "waiting for %s", "nothing")
	})
	if !result.failed || !strings.Contains(result.message, "waiting for nothing") {
		t.Fatalf("timeout not reported, got failed=%v message=%q", result.failed, result.message)
	}
}

func TestRequireClosed(t *testing.T) {
	ch := make(chan struct{})
	close(ch)
	RequireClosed(t, ch, time.Second, "closed channel")

	result := capture(func(r TestingT) {
		RequireClosed(r, make(chan struct{}), 10*time.Millisecond)
	})
	if !result.failed || !strings.Contains(result.message, "(no message)") {
		t.Fatalf("timeout not reported, got failed=%v message=%q", result.failed, result.message)
	}
}

func TestRequireEventually(t *testing.T) {
	calls := 0
	RequireEventually(t, func() bool {
		calls++
		return calls == 3
	}, time.Second, time.Millisecond, "third call")
	if calls != 3 {
		t.Fatalf("condition called %d times, want 3", calls)
	}

	result := capture(func(r TestingT) {
		RequireEventually(r, func() bool { return false }, 5*time.Millisecond, time.Millisecond, 42)
	})
	if !result.failed || !strings.Contains(result.message, "42") {
		t.Fatalf("timeout not reported, got failed=%v message=%q", result.failed, result.message)
	}
}
