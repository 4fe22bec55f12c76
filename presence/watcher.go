// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/transport"
)

// WatcherConfig holds the parameters for creating a Watcher.
type WatcherConfig struct {
	// ConversationID names the channel. Required.
	ConversationID string

	// UserID is the local user, suppressed as self-echo. Required.
	UserID string

	// PeerID is the participant being watched. Required.
	PeerID string

	// Transport carries the events. Required.
	Transport transport.Transport

	// Expiry overrides DefaultTypingExpiry when positive.
	Expiry time.Duration

	// OnChange receives every peer state transition. Required.
	OnChange ChangeFunc

	// Clock drives the typing expiry. Required.
	Clock clock.Clock

	// Logger receives decode errors. Required.
	Logger *slog.Logger
}

// Watcher tracks the other participant's presence on one conversation.
// The typing state is self-expiring: the sender only ever says "still
// typing", so after Expiry without a typing event the watcher reverts
// the peer to online on its own.
type Watcher struct {
	conversationID string
	userID         string
	peerID         string
	channel        transport.Channel
	expiry         time.Duration
	onChange       ChangeFunc
	clock          clock.Clock
	logger         *slog.Logger

	mu          sync.Mutex
	state       PeerState
	expiryTimer *clock.Timer
	cancel      func()
	stopped     bool
}

// NewWatcher creates a Watcher. Call Start to subscribe.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.ConversationID == "" || cfg.UserID == "" || cfg.PeerID == "" {
		return nil, fmt.Errorf("presence: ConversationID, UserID, and PeerID are required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("presence: Transport is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("presence: OnChange is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("presence: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("presence: Logger is required")
	}

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}

	return &Watcher{
		conversationID: cfg.ConversationID,
		userID:         cfg.UserID,
		peerID:         cfg.PeerID,
		channel:        cfg.Transport.Channel(transport.ConversationChannel(cfg.ConversationID)),
		expiry:         expiry,
		onChange:       cfg.OnChange,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		state:          PeerOffline,
	}, nil
}

// Start subscribes to the conversation channel.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil || w.stopped {
		return
	}
	w.cancel = w.channel.Subscribe("", w.handleEnvelope)
}

// Stop unsubscribes and stops the expiry timer.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	cancel := w.cancel
	w.cancel = nil
	timer := w.expiryTimer
	w.expiryTimer = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if timer != nil {
		timer.Stop()
	}
}

// State returns the peer's current presence.
func (w *Watcher) State() PeerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) handleEnvelope(env transport.Envelope) {
	if env.From != w.peerID {
		return // self-echo, or a third party on a shared channel
	}

	switch env.Type {
	case EventStatus:
		var signal StatusSignal
		if err := json.Unmarshal(env.Payload, &signal); err != nil {
			w.logger.Error("decoding status event", "error", err)
			return
		}
		switch signal.Status {
		case StatusOnline:
			w.setState(PeerOnline, false)
		case StatusOffline:
			w.setState(PeerOffline, false)
		}

	case EventTyping:
		w.setState(PeerTyping, true)
	}
}

// setState applies a transition and manages the typing expiry timer.
// A typing event resets the timer; any explicit status cancels it.
func (w *Watcher) setState(state PeerState, typing bool) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}

	if timer := w.expiryTimer; timer != nil {
		w.expiryTimer = nil
		timer.Stop()
	}
	if typing {
		w.expiryTimer = w.clock.AfterFunc(w.expiry, w.expireTyping)
	}

	changed := w.state != state
	w.state = state
	w.mu.Unlock()

	if changed {
		w.onChange(state)
	}
}

// expireTyping reverts typing to online after silence.
func (w *Watcher) expireTyping() {
	w.mu.Lock()
	if w.stopped || w.state != PeerTyping {
		w.mu.Unlock()
		return
	}
	w.state = PeerOnline
	w.expiryTimer = nil
	w.mu.Unlock()

	w.onChange(PeerOnline)
}
