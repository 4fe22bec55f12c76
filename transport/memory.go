// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"sync"
)

// Compile-time interface checks.
var (
	_ Transport = (*MemoryClient)(nil)
	_ Channel   = (*memoryChannel)(nil)
)

// MemoryBroker is an in-process pub/sub hub. Clients attached to the
// same broker exchange envelopes without any network, which is how the
// chat, rtc, and presence tests run against real subscription plumbing.
//
// Delivery is synchronous and in publish order — deliberately stronger
// than the production provider guarantees. Tests that need disorder
// inject it explicitly by publishing out of order.
type MemoryBroker struct {
	mu       sync.Mutex
	channels map[string][]*memorySubscription
	closed   bool
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		channels: make(map[string][]*memorySubscription),
	}
}

// Client attaches a new client in the connected state. The clientID is
// the user identifier the client publishes as.
func (b *MemoryBroker) Client(clientID string) *MemoryClient {
	return &MemoryClient{
		broker:   b,
		clientID: clientID,
		state:    StateConnected,
	}
}

type memorySubscription struct {
	channel   string
	eventType string // empty matches all
	handler   Handler
	client    *MemoryClient
	removed   bool
}

// publish delivers an envelope to every live subscription on the
// channel whose event type matches and whose owning client is
// connected. Handlers run outside the broker lock so they may publish
// in turn.
func (b *MemoryBroker) publish(channel string, env Envelope) {
	b.mu.Lock()
	subs := make([]*memorySubscription, 0, len(b.channels[channel]))
	for _, sub := range b.channels[channel] {
		if sub.removed {
			continue
		}
		if sub.eventType != "" && sub.eventType != env.Type {
			continue
		}
		if sub.client.State() != StateConnected {
			continue
		}
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.handler(env)
	}
}

func (b *MemoryBroker) subscribe(sub *memorySubscription) func() {
	b.mu.Lock()
	b.channels[sub.channel] = append(b.channels[sub.channel], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		sub.removed = true
		b.mu.Unlock()
	}
}

// MemoryClient is one client's connection to a MemoryBroker.
type MemoryClient struct {
	broker   *MemoryBroker
	clientID string

	mu        sync.Mutex
	state     State
	callbacks []*stateCallback
}

type stateCallback struct {
	fn      func(State)
	removed bool
}

// ClientID returns the identifier the client publishes as.
func (c *MemoryClient) ClientID() string { return c.clientID }

// State returns the current connection state.
func (c *MemoryClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState forces a state transition and fires the registered
// callbacks. Tests use this to simulate disconnects and suspensions.
func (c *MemoryClient) SetState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	callbacks := make([]*stateCallback, 0, len(c.callbacks))
	callbacks = append(callbacks, c.callbacks...)
	c.mu.Unlock()

	for _, cb := range callbacks {
		if !cb.removed {
			cb.fn(state)
		}
	}
}

// OnStateChange registers a state transition callback.
func (c *MemoryClient) OnStateChange(callback func(State)) (cancel func()) {
	cb := &stateCallback{fn: callback}
	c.mu.Lock()
	c.callbacks = append(c.callbacks, cb)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		cb.removed = true
		c.mu.Unlock()
	}
}

// Connect moves the client to connected. Fails if the client was
// closed.
func (c *MemoryClient) Connect(_ context.Context) error {
	if c.State() == StateClosed {
		return errors.New("transport: client is closed")
	}
	c.SetState(StateConnected)
	return nil
}

// Close moves the client to closed. Its subscriptions stop matching.
func (c *MemoryClient) Close() error {
	c.SetState(StateClosed)
	return nil
}

// Channel returns a handle on the named broker channel.
func (c *MemoryClient) Channel(name string) Channel {
	return &memoryChannel{client: c, name: name}
}

type memoryChannel struct {
	client *MemoryClient
	name   string
}

func (ch *memoryChannel) Name() string { return ch.name }

func (ch *memoryChannel) Publish(_ context.Context, env Envelope) error {
	if ch.client.State() != StateConnected {
		return ErrNotConnected
	}
	ch.client.broker.publish(ch.name, env)
	return nil
}

func (ch *memoryChannel) Subscribe(eventType string, handler Handler) (cancel func()) {
	return ch.client.broker.subscribe(&memorySubscription{
		channel:   ch.name,
		eventType: eventType,
		handler:   handler,
		client:    ch.client,
	})
}
