// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so the server's
// liveness deadlines and heartbeat pacing can be tested without
// sleeping.
//
// Production code takes a [Clock] and receives [Real]. Tests construct
// a [FakeClock] with [Fake], start the code under test, wait for it to
// arm its timers, then move time forward:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	server := fapserver.New(config, controller, fapserver.WithClock(fake))
//	// ... associate a client ...
//	fake.WaitForTimers(2)          // heartbeat pause + liveness deadline
//	fake.Advance(21 * time.Second) // liveness deadline passes
//
// [FakeClock.WaitForTimers] closes the race between a goroutine arming
// a timer and the test advancing past it. Stopped timers no longer
// count as pending, so a goroutine that re-arms its deadline in a loop
// always contributes exactly one pending timer.
package clock
