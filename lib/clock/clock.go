// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations used by the auction house.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once, d after now. The returned Timer can
	// cancel the call. If d <= 0, f runs immediately.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending single-shot callback.
type Timer struct {
	stopFunc func() bool
}

// Stop cancels the callback. Returns false if it already fired or was
// already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Ticker delivers periodic ticks. C has capacity 1; ticks that find it
// full are dropped, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }
