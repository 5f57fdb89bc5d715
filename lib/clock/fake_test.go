// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	clock.Advance(5 * time.Second)
	if got, want := clock.Now(), epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFuncFiresAtDeadline(t *testing.T) {
	clock := Fake(epoch)
	var fired atomic.Bool
	clock.AfterFunc(30*time.Second, func() { fired.Store(true) })

	clock.Advance(29 * time.Second)
	if fired.Load() {
		t.Fatal("AfterFunc fired before its deadline")
	}
	clock.Advance(time.Second)
	if !fired.Load() {
		t.Fatal("AfterFunc did not fire at its deadline")
	}
}

// An auction extends its deadline by stopping its timer and arming a
// new one; only the new deadline fires.
func TestFakeClockAfterFuncRearm(t *testing.T) {
	clock := Fake(epoch)
	var first, second atomic.Int32
	timer := clock.AfterFunc(30*time.Second, func() { first.Add(1) })

	clock.Advance(20 * time.Second)
	timer.Stop()
	clock.AfterFunc(30*time.Second, func() { second.Add(1) })

	clock.Advance(20 * time.Second)
	if first.Load() != 0 || second.Load() != 0 {
		t.Fatalf("fired first=%d second=%d at 40s, want neither", first.Load(), second.Load())
	}
	clock.Advance(10 * time.Second)
	if first.Load() != 0 || second.Load() != 1 {
		t.Fatalf("fired first=%d second=%d at 50s, want only the second", first.Load(), second.Load())
	}
	if got := clock.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() = %d after both timers ended, want 0", got)
	}
}

func TestFakeClockAfterFuncStop(t *testing.T) {
	clock := Fake(epoch)
	var fired atomic.Bool
	timer := clock.AfterFunc(time.Second, func() { fired.Store(true) })
	if !timer.Stop() {
		t.Fatal("Stop of a pending timer should report true")
	}
	clock.Advance(time.Minute)
	if fired.Load() {
		t.Fatal("stopped timer fired")
	}
	if timer.Stop() {
		t.Fatal("second Stop should report false")
	}
}

func TestFakeClockTicker(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not tick after one period")
	}

	// Several periods at once deliver one tick; the rest are dropped.
	clock.Advance(3 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not tick after three periods")
	}
	select {
	case <-ticker.C:
		t.Fatal("overflow ticks should be dropped")
	default:
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	registered := make(chan struct{})
	go func() {
		clock.AfterFunc(time.Second, func() {})
		close(registered)
	}()
	clock.WaitForTimers(1)
	<-registered
	if got := clock.PendingCount(); got != 1 {
		t.Fatalf("PendingCount() = %d, want 1", got)
	}
}
