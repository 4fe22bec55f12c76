// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code injects
// Real(); tests inject Fake() and advance it deterministically.
//
// Every timed behavior in this repository — the system-message dedup
// window, the typing-indicator debounce and expiry, the call answer
// timeout, the transport reconnect backoff — takes a Clock instead of
// calling the time package directly, so tests never sleep.
package clock

import "time"

// Clock is the time source injected into timed components.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d elapses. If d <= 0, the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (real clock) or synchronously during Advance (fake
	// clock). The returned Timer cancels or reschedules the pending
	// call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled AfterFunc call. Its channel is not exposed;
// callers interact only through Stop and Reset.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the timer from firing. Returns true if the call stops
// the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset reschedules the timer to fire after duration d. Returns true
// if the timer was active before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{
		stopFunc:  timer.Stop,
		resetFunc: timer.Reset,
	}
}
