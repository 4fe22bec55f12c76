// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package call owns the durable call record and its status state
// machine. A call is created when one party initiates it, mutated only
// through the defined transitions, and never deleted: terminated calls
// stay in the table as history.
//
// The package is deliberately transport-free. Live signaling (offers,
// answers, ICE) happens in package rtc; both sides of a call report
// status changes here, and the transition table absorbs the resulting
// races — a retried terminal report is a no-op, an impossible jump is
// ErrInvalidTransition.
package call
