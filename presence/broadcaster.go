// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/transport"
)

// BroadcasterConfig holds the parameters for creating a Broadcaster.
type BroadcasterConfig struct {
	// ConversationID names the channel. Required.
	ConversationID string

	// UserID is the local user. Required.
	UserID string

	// Transport carries the events. Required.
	Transport transport.Transport

	// Debounce overrides DefaultTypingDebounce when positive.
	Debounce time.Duration

	// Clock drives the debounce. Required.
	Clock clock.Clock

	// Logger receives dropped-publish warnings. Required.
	Logger *slog.Logger
}

// Broadcaster publishes the local user's presence on one conversation's
// channel. Everything is fire-and-forget: a dropped status event is
// logged and forgotten, never retried into a reconnect cycle.
type Broadcaster struct {
	conversationID string
	userID         string
	channel        transport.Channel
	debounce       time.Duration
	clock          clock.Clock
	logger         *slog.Logger

	mu        sync.Mutex
	lastTyped time.Time
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(cfg BroadcasterConfig) (*Broadcaster, error) {
	if cfg.ConversationID == "" || cfg.UserID == "" {
		return nil, fmt.Errorf("presence: ConversationID and UserID are required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("presence: Transport is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("presence: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("presence: Logger is required")
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultTypingDebounce
	}

	return &Broadcaster{
		conversationID: cfg.ConversationID,
		userID:         cfg.UserID,
		channel:        cfg.Transport.Channel(transport.ConversationChannel(cfg.ConversationID)),
		debounce:       debounce,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
	}, nil
}

// Attach announces the user is viewing the conversation.
func (b *Broadcaster) Attach(ctx context.Context) {
	b.publishStatus(ctx, StatusOnline)
}

// Detach announces the user left the conversation view.
func (b *Broadcaster) Detach(ctx context.Context) {
	b.publishStatus(ctx, StatusOffline)
}

// Typing publishes a typing indicator, at most once per debounce
// window. Called on every local keystroke; the window collapses a
// burst into one event.
func (b *Broadcaster) Typing(ctx context.Context) {
	now := b.clock.Now()

	b.mu.Lock()
	if now.Sub(b.lastTyped) < b.debounce {
		b.mu.Unlock()
		return
	}
	b.lastTyped = now
	b.mu.Unlock()

	env, err := transport.NewEnvelope(EventTyping, b.userID, struct{}{}, now)
	if err != nil {
		b.logger.Error("encoding typing event", "error", err)
		return
	}
	if err := b.channel.Publish(ctx, env); err != nil {
		b.logger.Warn("typing event dropped", "error", err)
	}
}

func (b *Broadcaster) publishStatus(ctx context.Context, status string) {
	env, err := transport.NewEnvelope(EventStatus, b.userID, StatusSignal{Status: status}, b.clock.Now())
	if err != nil {
		b.logger.Error("encoding status event", "error", err)
		return
	}
	if err := b.channel.Publish(ctx, env); err != nil {
		b.logger.Warn("status event dropped", "status", status, "error", err)
	}
}
