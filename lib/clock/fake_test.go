// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	if got := clock.Now(); !got.Equal(epoch.Add(5 * time.Second)) {
		t.Fatalf("Now() after Advance = %v", got)
	}
}

func TestFakeClockAfter(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	clock.Advance(2 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case fired := <-channel:
		if !fired.Equal(epoch.Add(3 * time.Second)) {
			t.Errorf("fired at %v, want %v", fired, epoch.Add(3*time.Second))
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}

	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after one-shot fired, want 0", clock.PendingCount())
	}
}

func TestFakeClockAfterNonPositive(t *testing.T) {
	clock := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-clock.After(d):
		default:
			t.Errorf("After(%v) did not fire immediately", d)
		}
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", clock.PendingCount())
	}
}

func TestFakeClockTimerStop(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)

	if clock.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", clock.PendingCount())
	}
	if !timer.Stop() {
		t.Fatal("Stop on armed timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d after Stop, want 0", clock.PendingCount())
	}

	clock.Advance(2 * time.Second)
	select {
	case <-timer.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeClockTicker(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	for tick := 1; tick <= 3; tick++ {
		clock.Advance(time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d not delivered", tick)
		}
	}

	// Five intervals in one Advance: the channel holds one tick.
	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after multi-interval Advance")
	}
	select {
	case <-ticker.C:
		t.Fatal("ticker queued more than one tick")
	default:
	}

	ticker.Stop()
	clock.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestFakeClockTickerPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) did not panic")
		}
	}()
	Fake(epoch).NewTicker(0)
}

func TestFakeClockSleepAndWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	woke := make(chan struct{})

	go func() {
		clock.Sleep(10 * time.Second)
		close(woke)
	}()

	clock.WaitForTimers(1)
	clock.Advance(10 * time.Second)

	select {
	case <-woke:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	late := clock.After(3 * time.Second)
	early := clock.After(1 * time.Second)

	clock.Advance(3 * time.Second)

	for name, channel := range map[string]<-chan time.Time{"early": early, "late": late} {
		select {
		case <-channel:
		default:
			t.Errorf("%s timer did not fire", name)
		}
	}
}

func TestFakeClockImplementsClock(t *testing.T) {
	var _ Clock = Fake(epoch)
	var _ Clock = Real()
}
