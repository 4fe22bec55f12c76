// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// State is the connection lifecycle of a realtime transport client.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateSuspended    State = "suspended"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

// ErrNotConnected is returned by Publish when the client is not in the
// connected state. Callers treat it as transport-transient: retry once,
// then hand the connection to a Reconnector.
var ErrNotConnected = errors.New("transport: not connected")

// Envelope is the wire form of every realtime event. It exists only on
// the transport — never persisted. Loss is tolerable for presence
// events; for offer/answer/ICE the negotiation engine compensates
// (buffering, re-offers, store re-sync).
type Envelope struct {
	// Type discriminates the event (e.g. "new-message", "offer").
	Type string `json:"type"`

	// From is the publishing client's user identifier. Subscribers
	// must ignore envelopes they published themselves.
	From string `json:"from"`

	// To addresses one participant; empty means broadcast to the
	// channel.
	To string `json:"to,omitempty"`

	// Payload is the event body, JSON-encoded.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Timestamp is the publisher's clock in Unix milliseconds. Used
	// for display only — ordering decisions key on record ids, never
	// on this field.
	Timestamp int64 `json:"timestamp"`
}

// NewEnvelope builds an envelope with a JSON-encoded payload.
func NewEnvelope(eventType, from string, payload any, now time.Time) (Envelope, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("transport: encoding %s payload: %w", eventType, err)
	}
	return Envelope{
		Type:      eventType,
		From:      from,
		Payload:   encoded,
		Timestamp: now.UnixMilli(),
	}, nil
}

// Handler consumes envelopes delivered on a subscription. Handlers run
// on the transport's delivery goroutine and must not block.
type Handler func(Envelope)

// Channel is a named pub/sub channel. Delivery is at-most-once and
// arrival order is not guaranteed to match publish order across
// reconnects; consumers treat every event as an idempotent hint keyed
// by record id.
type Channel interface {
	// Name returns the channel name.
	Name() string

	// Publish sends an envelope to all current subscribers of the
	// channel. Best-effort: no acknowledgment, no redelivery.
	Publish(ctx context.Context, env Envelope) error

	// Subscribe registers a handler for envelopes of the given type.
	// An empty eventType subscribes to every event on the channel.
	// The returned cancel function removes the subscription.
	Subscribe(eventType string, handler Handler) (cancel func())
}

// Transport is a connection to the realtime pub/sub provider. The
// production implementation lives with the provider SDK; this package
// ships [MemoryBroker] for in-process use.
type Transport interface {
	// ClientID is the stable per-user identifier used for event
	// attribution and self-echo suppression.
	ClientID() string

	// Channel returns the named channel, creating the local handle if
	// needed. Subscriptions registered while disconnected take effect
	// on reconnect.
	Channel(name string) Channel

	// State returns the current connection state.
	State() State

	// OnStateChange registers a callback invoked on every state
	// transition. The returned cancel function removes it.
	OnStateChange(callback func(State)) (cancel func())

	// Connect (re)establishes the connection. Idempotent when already
	// connected.
	Connect(ctx context.Context) error

	// Close terminates the connection and releases subscriptions.
	Close() error
}

// ConversationChannel returns the channel name for a conversation's
// chat and presence traffic. One channel per conversation, named from
// the persisted conversation id.
func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}

// CallChannel returns the signaling channel name for one call,
// distinct from the conversation's chat channel.
func CallChannel(callID string) string {
	return "call:" + callID
}

// PublishRetry publishes best-effort with one immediate retry. Returns
// the last error so the caller can escalate to its reconnect cycle;
// callers on the persist-then-broadcast path log the error and move on
// rather than failing the mutation.
func PublishRetry(ctx context.Context, channel Channel, env Envelope) error {
	err := channel.Publish(ctx, env)
	if err == nil {
		return nil
	}
	if err := channel.Publish(ctx, env); err == nil {
		return nil
	}
	return fmt.Errorf("transport: publish %s on %s: %w", env.Type, channel.Name(), err)
}
