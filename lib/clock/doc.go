// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the monotonic time source consumed by the
// timing wheel and the bench driver.
//
// The wheel only needs two things from time: a monotonic Now reading
// to compute tick counts against its start epoch, and a way to sleep
// until the next precision boundary. [Clock] captures exactly that.
// Production code passes [Real]; tests pass [Fake] and move time
// forward explicitly.
//
// # Driving a FakeClock
//
// A goroutine blocked in After or Sleep on a FakeClock registers a
// pending waiter. Tests call WaitForTimers before Advance so the
// advance never races the registration:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go wheel.Run(ctx)
//	fake.WaitForTimers(1)            // loop is asleep
//	fake.Advance(10 * time.Millisecond)
//	fake.WaitForTimers(1)            // loop processed the tick and slept again
//
// Times returned by Real carry Go's monotonic reading, so Sub and
// Since are immune to wall-clock steps. Fake times are synthetic and
// monotonic by construction: Advance rejects negative durations.
package clock
