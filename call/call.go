// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import (
	"errors"
	"fmt"
	"time"
)

// MediaType selects the media a call carries.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// ValidMediaType reports whether m is a known media type.
func ValidMediaType(m MediaType) bool {
	return m == MediaAudio || m == MediaVideo
}

// Status is a call's position in its lifecycle.
type Status string

const (
	// StatusInitiated is the initial status: the call exists and is
	// ringing on the recipient's side.
	StatusInitiated Status = "initiated"

	// StatusConnected means the recipient accepted and media is (or is
	// about to be) flowing.
	StatusConnected Status = "connected"

	// StatusEnded is terminal: a connected call was hung up. The only
	// status that carries a duration.
	StatusEnded Status = "ended"

	// StatusRejected is terminal: the recipient declined.
	StatusRejected Status = "rejected"

	// StatusMissed is terminal: nobody answered within the window.
	StatusMissed Status = "missed"
)

// transitions is the full state machine. Absent statuses are terminal.
var transitions = map[Status][]Status{
	StatusInitiated: {StatusConnected, StatusRejected, StatusMissed},
	StatusConnected: {StatusEnded},
}

// Terminal reports whether s accepts no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// canTransition reports whether from → to is in the table.
func canTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound is returned for an unknown call id.
	ErrNotFound = errors.New("call not found")

	// ErrInvalidTransition is returned when a status update is not in
	// the transition table.
	ErrInvalidTransition = errors.New("invalid call status transition")

	// ErrInvalidMedia is returned for an unknown media type.
	ErrInvalidMedia = errors.New("invalid media type")
)

// Call is the durable record of one call attempt.
type Call struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	InitiatorID    string    `json:"initiator_id"`
	RecipientID    string    `json:"recipient_id"`
	Media          MediaType `json:"media_type"`
	Status         Status    `json:"status"`

	// DurationSeconds is set only when Status is StatusEnded.
	DurationSeconds int `json:"duration_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasParty reports whether userID is either side of the call.
func (c Call) HasParty(userID string) bool {
	return c.InitiatorID == userID || c.RecipientID == userID
}

// HistoryEntry is a call annotated for display.
type HistoryEntry struct {
	Call         Call   `json:"call"`
	DurationText string `json:"duration_text"`
}

// NewCallID builds the deterministic call id for a pair of users at a
// moment in time: the sorted pair plus a millisecond timestamp. Both
// ends of a call derive the same id, so retried creates collapse onto
// one record.
func NewCallID(a, b string, at time.Time) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("call-%s-%s-%d", a, b, at.UnixMilli())
}
