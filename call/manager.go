// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hirewire/comms/lib/clock"
)

// DefaultRecencyWindow bounds how old an unterminated call record may
// be and still count as active. Records older than this are treated as
// abandoned (a crashed client that never reported a terminal status)
// so they cannot block future calls indefinitely.
const DefaultRecencyWindow = time.Hour

// Config holds the parameters for creating a Manager.
type Config struct {
	// Store is the durable call store. Required.
	Store *Store

	// RecencyWindow overrides DefaultRecencyWindow when positive.
	RecencyWindow time.Duration

	// Clock provides the recency cutoff. Required.
	Clock clock.Clock

	// Logger receives lifecycle messages. Required.
	Logger *slog.Logger
}

// Manager applies call lifecycle rules on top of the store: party
// validation on create, the missed-call timeout path, and the recency
// window on active-call checks.
type Manager struct {
	store         *Store
	recencyWindow time.Duration
	clock         clock.Clock
	logger        *slog.Logger
}

// NewManager creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("call: Config.Store is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("call: Config.Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("call: Config.Logger is required")
	}

	recencyWindow := cfg.RecencyWindow
	if recencyWindow <= 0 {
		recencyWindow = DefaultRecencyWindow
	}

	return &Manager{
		store:         cfg.Store,
		recencyWindow: recencyWindow,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
	}, nil
}

// Create records a new call with status initiated. Idempotent on the
// call id: the initiating client may retry the create after a transport
// hiccup and land on the same record.
func (m *Manager) Create(ctx context.Context, c Call) (Call, error) {
	if c.InitiatorID == "" || c.RecipientID == "" {
		return Call{}, fmt.Errorf("call: empty party id")
	}
	if c.InitiatorID == c.RecipientID {
		return Call{}, fmt.Errorf("call: initiator and recipient are the same user")
	}
	return m.store.Create(ctx, c)
}

// ByID returns the call, or ErrNotFound.
func (m *Manager) ByID(ctx context.Context, id string) (Call, error) {
	return m.store.ByID(ctx, id)
}

// UpdateStatus applies a lifecycle transition. Duration is recorded
// only when the new status is ended. Re-reporting the call's current
// status is a no-op so both parties can report the same outcome.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status Status, durationSeconds int) (Call, error) {
	switch status {
	case StatusConnected, StatusEnded, StatusRejected, StatusMissed:
	default:
		return Call{}, fmt.Errorf("call: %w: %q", ErrInvalidTransition, status)
	}
	return m.store.UpdateStatus(ctx, id, status, durationSeconds)
}

// MarkMissed moves an unanswered call to missed. Safe to fire from a
// timer that may race an answer: if the call left initiated in the
// meantime the call record is returned unchanged.
func (m *Manager) MarkMissed(ctx context.Context, id string) (Call, error) {
	c, err := m.store.UpdateStatus(ctx, id, StatusMissed, 0)
	if errors.Is(err, ErrInvalidTransition) {
		return m.store.ByID(ctx, id)
	}
	if err != nil {
		return Call{}, err
	}
	return c, nil
}

// ActiveCall returns the user's live call inside the recency window,
// or ErrNotFound.
func (m *Manager) ActiveCall(ctx context.Context, userID string) (Call, error) {
	cutoff := m.clock.Now().Add(-m.recencyWindow)
	return m.store.ActiveCall(ctx, userID, cutoff)
}

// InActiveCall reports whether the user has a live call inside the
// recency window.
func (m *Manager) InActiveCall(ctx context.Context, userID string) (bool, error) {
	_, err := m.ActiveCall(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// History returns the user's calls, most recent first, annotated with
// display durations. When otherUserID is non-empty only calls between
// the two users are returned.
func (m *Manager) History(ctx context.Context, userID, otherUserID string) ([]HistoryEntry, error) {
	calls, err := m.store.History(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, len(calls))
	for i, c := range calls {
		entries[i] = HistoryEntry{
			Call:         c,
			DurationText: FormatDuration(c.DurationSeconds),
		}
	}
	return entries, nil
}
