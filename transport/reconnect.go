// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hirewire/comms/lib/clock"
)

// Default reconnect policy: a short fixed backoff, not exponential —
// the provider already rate-limits connection attempts, and a chat
// client that waits a minute to reconnect is effectively offline.
const (
	DefaultReconnectBackoff  = 2 * time.Second
	DefaultReconnectAttempts = 5
)

// ReconnectorConfig configures a Reconnector.
type ReconnectorConfig struct {
	// Transport is the connection to watch. Required.
	Transport Transport

	// Backoff is the fixed delay between attempts. Defaults to
	// DefaultReconnectBackoff.
	Backoff time.Duration

	// MaxAttempts bounds one reconnect cycle. After the last failed
	// attempt OnGiveUp fires and the cycle ends. Defaults to
	// DefaultReconnectAttempts.
	MaxAttempts int

	// OnReconnect runs after a successful Connect. Components use it
	// to resubscribe channels and re-sync state from the store.
	OnReconnect func()

	// OnGiveUp runs when a cycle exhausts MaxAttempts. This is where
	// the user-visible connection banner comes from.
	OnGiveUp func(error)

	// Clock provides the backoff timing. Required.
	Clock clock.Clock

	// Logger receives reconnect progress. Nil means discard.
	Logger *slog.Logger
}

// Reconnector watches a Transport and silently reconnects it after
// disconnects and suspensions, with a fixed short backoff and a
// bounded number of attempts per outage.
type Reconnector struct {
	transport   Transport
	backoff     time.Duration
	maxAttempts int
	onReconnect func()
	onGiveUp    func(error)
	clock       clock.Clock
	logger      *slog.Logger

	mu      sync.Mutex
	active  bool
	cancel  func()
	stopped bool
}

// NewReconnector creates a Reconnector. Call Start to begin watching.
func NewReconnector(cfg ReconnectorConfig) (*Reconnector, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport: Reconnector requires a Transport")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("transport: Reconnector requires a Clock")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultReconnectAttempts
	}

	return &Reconnector{
		transport:   cfg.Transport,
		backoff:     backoff,
		maxAttempts: maxAttempts,
		onReconnect: cfg.OnReconnect,
		onGiveUp:    cfg.OnGiveUp,
		clock:       cfg.Clock,
		logger:      logger,
	}, nil
}

// Start registers the state watcher. Reconnect cycles run until Stop
// is called or ctx is cancelled.
func (r *Reconnector) Start(ctx context.Context) {
	r.mu.Lock()
	r.cancel = r.transport.OnStateChange(func(state State) {
		if state == StateDisconnected || state == StateSuspended {
			r.beginCycle(ctx)
		}
	})
	r.mu.Unlock()
}

// Stop removes the watcher. An in-flight cycle finishes its current
// attempt and exits.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	r.stopped = true
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}

// beginCycle starts one reconnect cycle unless one is already running.
func (r *Reconnector) beginCycle(ctx context.Context) {
	r.mu.Lock()
	if r.active || r.stopped {
		r.mu.Unlock()
		return
	}
	r.active = true
	r.mu.Unlock()

	go r.runCycle(ctx)
}

func (r *Reconnector) runCycle(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
	}()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		select {
		case <-r.clock.After(r.backoff):
		case <-ctx.Done():
			return
		}

		r.mu.Lock()
		stopped := r.stopped
		r.mu.Unlock()
		if stopped {
			return
		}

		// The transport may have recovered on its own while we waited.
		if r.transport.State() == StateConnected {
			lastErr = nil
		} else {
			lastErr = r.transport.Connect(ctx)
		}

		if lastErr == nil {
			r.logger.Info("transport reconnected", "attempt", attempt)
			if r.onReconnect != nil {
				r.onReconnect()
			}
			return
		}

		r.logger.Warn("transport reconnect attempt failed",
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"error", lastErr,
		)
	}

	r.logger.Error("transport reconnect exhausted", "attempts", r.maxAttempts, "error", lastErr)
	if r.onGiveUp != nil {
		r.onGiveUp(fmt.Errorf("transport: reconnect failed after %d attempts: %w", r.maxAttempts, lastErr))
	}
}
