// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/transport"
)

func newBroadcasterFixture(t *testing.T) (*Broadcaster, *transport.MemoryBroker, *clock.FakeClock) {
	t.Helper()

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	broker := transport.NewMemoryBroker()

	broadcaster, err := NewBroadcaster(BroadcasterConfig{
		ConversationID: "conv-1",
		UserID:         "alice",
		Transport:      broker.Client("alice"),
		Clock:          fakeClock,
		Logger:         slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewBroadcaster: %v", err)
	}
	return broadcaster, broker, fakeClock
}

// collect subscribes an observer to the conversation channel.
func collect(t *testing.T, broker *transport.MemoryBroker, clientID string) *[]transport.Envelope {
	t.Helper()

	var events []transport.Envelope
	cancel := broker.Client(clientID).Channel(transport.ConversationChannel("conv-1")).Subscribe("", func(env transport.Envelope) {
		events = append(events, env)
	})
	t.Cleanup(cancel)
	return &events
}

func TestBroadcasterStatus(t *testing.T) {
	broadcaster, broker, _ := newBroadcasterFixture(t)
	events := collect(t, broker, "bob")
	ctx := context.Background()

	broadcaster.Attach(ctx)
	broadcaster.Detach(ctx)

	if len(*events) != 2 {
		t.Fatalf("got %d events, want 2", len(*events))
	}
	for i, want := range []string{StatusOnline, StatusOffline} {
		env := (*events)[i]
		if env.Type != EventStatus {
			t.Fatalf("events[%d].Type = %q, want %q", i, env.Type, EventStatus)
		}
		var signal StatusSignal
		if err := json.Unmarshal(env.Payload, &signal); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if signal.Status != want {
			t.Errorf("events[%d].Status = %q, want %q", i, signal.Status, want)
		}
	}
}

func TestBroadcasterTypingDebounce(t *testing.T) {
	broadcaster, broker, fakeClock := newBroadcasterFixture(t)
	events := collect(t, broker, "bob")
	ctx := context.Background()

	// A burst of keystrokes collapses into one event.
	for i := 0; i < 5; i++ {
		broadcaster.Typing(ctx)
		fakeClock.Advance(50 * time.Millisecond)
	}
	if len(*events) != 1 {
		t.Fatalf("got %d typing events during the burst, want 1", len(*events))
	}

	// Once the window passes, typing publishes again.
	fakeClock.Advance(DefaultTypingDebounce)
	broadcaster.Typing(ctx)
	if len(*events) != 2 {
		t.Fatalf("got %d typing events after the window, want 2", len(*events))
	}
}

type watcherFixture struct {
	watcher     *Watcher
	broadcaster *Broadcaster
	clock       *clock.FakeClock
	changes     []PeerState
}

func newWatcherFixture(t *testing.T) *watcherFixture {
	t.Helper()

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	broker := transport.NewMemoryBroker()
	logger := slog.New(slog.DiscardHandler)

	fixture := &watcherFixture{clock: fakeClock}

	watcher, err := NewWatcher(WatcherConfig{
		ConversationID: "conv-1",
		UserID:         "bob",
		PeerID:         "alice",
		Transport:      broker.Client("bob"),
		OnChange: func(state PeerState) {
			fixture.changes = append(fixture.changes, state)
		},
		Clock:  fakeClock,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	watcher.Start()
	t.Cleanup(watcher.Stop)

	broadcaster, err := NewBroadcaster(BroadcasterConfig{
		ConversationID: "conv-1",
		UserID:         "alice",
		Transport:      broker.Client("alice"),
		Clock:          fakeClock,
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("NewBroadcaster: %v", err)
	}

	fixture.watcher = watcher
	fixture.broadcaster = broadcaster
	return fixture
}

func TestWatcherFollowsStatus(t *testing.T) {
	fixture := newWatcherFixture(t)
	ctx := context.Background()

	if got := fixture.watcher.State(); got != PeerOffline {
		t.Fatalf("initial state = %q, want %q", got, PeerOffline)
	}

	fixture.broadcaster.Attach(ctx)
	if got := fixture.watcher.State(); got != PeerOnline {
		t.Fatalf("state after attach = %q, want %q", got, PeerOnline)
	}

	fixture.broadcaster.Detach(ctx)
	if got := fixture.watcher.State(); got != PeerOffline {
		t.Fatalf("state after detach = %q, want %q", got, PeerOffline)
	}

	want := []PeerState{PeerOnline, PeerOffline}
	if len(fixture.changes) != len(want) {
		t.Fatalf("changes = %v, want %v", fixture.changes, want)
	}
}

func TestWatcherTypingExpires(t *testing.T) {
	fixture := newWatcherFixture(t)
	ctx := context.Background()

	fixture.broadcaster.Attach(ctx)
	fixture.broadcaster.Typing(ctx)
	if got := fixture.watcher.State(); got != PeerTyping {
		t.Fatalf("state = %q, want %q", got, PeerTyping)
	}

	// Silence for the expiry window reverts to online without any
	// event from the peer.
	fixture.clock.Advance(DefaultTypingExpiry)
	if got := fixture.watcher.State(); got != PeerOnline {
		t.Fatalf("state after expiry = %q, want %q", got, PeerOnline)
	}

	want := []PeerState{PeerOnline, PeerTyping, PeerOnline}
	if len(fixture.changes) != len(want) {
		t.Fatalf("changes = %v, want %v", fixture.changes, want)
	}
}

func TestWatcherContinuedTypingResetsExpiry(t *testing.T) {
	fixture := newWatcherFixture(t)
	ctx := context.Background()

	fixture.broadcaster.Typing(ctx)
	fixture.clock.Advance(2 * time.Second)

	// A fresh typing event restarts the 3s window.
	fixture.broadcaster.Typing(ctx)
	fixture.clock.Advance(2 * time.Second)
	if got := fixture.watcher.State(); got != PeerTyping {
		t.Fatalf("state = %q, want still %q", got, PeerTyping)
	}

	fixture.clock.Advance(time.Second)
	if got := fixture.watcher.State(); got != PeerOnline {
		t.Fatalf("state = %q, want %q after full silence window", got, PeerOnline)
	}
}

func TestWatcherOfflineCancelsTyping(t *testing.T) {
	fixture := newWatcherFixture(t)
	ctx := context.Background()

	fixture.broadcaster.Typing(ctx)
	fixture.broadcaster.Detach(ctx)
	if got := fixture.watcher.State(); got != PeerOffline {
		t.Fatalf("state = %q, want %q", got, PeerOffline)
	}

	// The stale expiry timer must not resurrect the peer to online.
	fixture.clock.Advance(DefaultTypingExpiry)
	if got := fixture.watcher.State(); got != PeerOffline {
		t.Fatalf("state after stale expiry = %q, want %q", got, PeerOffline)
	}
}

func TestWatcherIgnoresOthers(t *testing.T) {
	fixture := newWatcherFixture(t)

	// Events from the watcher's own user (echoed) and from third
	// parties are both ignored.
	env, err := transport.NewEnvelope(EventTyping, "bob", struct{}{}, fixture.clock.Now())
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	fixture.watcher.handleEnvelope(env)
	if got := fixture.watcher.State(); got != PeerOffline {
		t.Fatalf("self-echo changed state to %q", got)
	}

	env.From = "stranger"
	fixture.watcher.handleEnvelope(env)
	if got := fixture.watcher.State(); got != PeerOffline {
		t.Fatalf("third-party event changed state to %q", got)
	}
}
