// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence is the ephemeral status layer: online/offline on
// attach and detach, and typing indicators, broadcast on the same
// per-conversation channel as chat events. Nothing here is persisted
// and loss is acceptable — a missed typing event corrects itself
// within seconds.
package presence

import "time"

// Event types on the conversation channel, alongside the chat events.
const (
	// EventStatus carries online/offline.
	EventStatus = "status"

	// EventTyping signals that the sender is composing. It carries no
	// payload; the receiver's expiry timer supplies the "stopped
	// typing" edge.
	EventTyping = "typing"
)

// Status values carried by EventStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Typing indicators are rate-limited at the sender and expired at the
// receiver. The debounce keeps one event per burst of keystrokes; the
// expiry is comfortably longer so the indicator never flickers between
// debounced events.
const (
	DefaultTypingDebounce = 500 * time.Millisecond
	DefaultTypingExpiry   = 3 * time.Second
)

// StatusSignal is the payload of EventStatus.
type StatusSignal struct {
	Status string `json:"status"`
}

// PeerState is what the watcher reports for the other participant.
type PeerState string

const (
	PeerOffline PeerState = "offline"
	PeerOnline  PeerState = "online"
	PeerTyping  PeerState = "typing"
)

// ChangeFunc receives peer state transitions from a Watcher. It may
// run on the transport's delivery goroutine or on a timer; it must not
// block.
type ChangeFunc func(state PeerState)
