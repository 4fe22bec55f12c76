// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hirewire/comms/lib/clock"
)

// blockableClient wraps a MemoryClient so tests can make Connect fail.
type blockableClient struct {
	*MemoryClient
	mu       sync.Mutex
	refuse   int
	attempts int
}

func (c *blockableClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.attempts++
	refuse := c.attempts <= c.refuse
	c.mu.Unlock()
	if refuse {
		return errors.New("connection refused")
	}
	return c.MemoryClient.Connect(ctx)
}

func (c *blockableClient) connectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func TestReconnectorRecovers(t *testing.T) {
	broker := NewMemoryBroker()
	client := &blockableClient{MemoryClient: broker.Client("a"), refuse: 2}
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	reconnected := make(chan struct{}, 1)
	r, err := NewReconnector(ReconnectorConfig{
		Transport:   client,
		Backoff:     2 * time.Second,
		MaxAttempts: 5,
		OnReconnect: func() { reconnected <- struct{}{} },
		Clock:       fakeClock,
	})
	if err != nil {
		t.Fatalf("NewReconnector: %v", err)
	}
	defer r.Stop()
	r.Start(context.Background())

	client.SetState(StateDisconnected)

	// Two refused attempts, then success on the third.
	for i := 0; i < 3; i++ {
		fakeClock.WaitForTimers(1)
		fakeClock.Advance(2 * time.Second)
	}

	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("OnReconnect never fired")
	}
	if got := client.connectAttempts(); got != 3 {
		t.Fatalf("Connect attempts = %d, want 3", got)
	}
	if client.State() != StateConnected {
		t.Fatalf("state = %v, want connected", client.State())
	}
}

func TestReconnectorGivesUpAfterMaxAttempts(t *testing.T) {
	broker := NewMemoryBroker()
	client := &blockableClient{MemoryClient: broker.Client("a"), refuse: 100}
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	gaveUp := make(chan error, 1)
	r, err := NewReconnector(ReconnectorConfig{
		Transport:   client,
		Backoff:     2 * time.Second,
		MaxAttempts: 3,
		OnGiveUp:    func(err error) { gaveUp <- err },
		Clock:       fakeClock,
	})
	if err != nil {
		t.Fatalf("NewReconnector: %v", err)
	}
	defer r.Stop()
	r.Start(context.Background())

	client.SetState(StateDisconnected)

	for i := 0; i < 3; i++ {
		fakeClock.WaitForTimers(1)
		fakeClock.Advance(2 * time.Second)
	}

	select {
	case err := <-gaveUp:
		if err == nil {
			t.Fatal("OnGiveUp fired with nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnGiveUp never fired")
	}
	if got := client.connectAttempts(); got != 3 {
		t.Fatalf("Connect attempts = %d, want exactly MaxAttempts (3)", got)
	}
}

func TestReconnectorSkipsConnectWhenRecovered(t *testing.T) {
	broker := NewMemoryBroker()
	client := &blockableClient{MemoryClient: broker.Client("a")}
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	reconnected := make(chan struct{}, 1)
	r, err := NewReconnector(ReconnectorConfig{
		Transport:   client,
		OnReconnect: func() { reconnected <- struct{}{} },
		Clock:       fakeClock,
	})
	if err != nil {
		t.Fatalf("NewReconnector: %v", err)
	}
	defer r.Stop()
	r.Start(context.Background())

	client.SetState(StateDisconnected)
	fakeClock.WaitForTimers(1)

	// The provider recovers on its own before the backoff elapses.
	client.MemoryClient.SetState(StateConnected)
	fakeClock.Advance(DefaultReconnectBackoff)

	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("OnReconnect never fired")
	}
	if got := client.connectAttempts(); got != 0 {
		t.Fatalf("Connect attempts = %d, want 0 for a self-recovered transport", got)
	}
}
