// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "time"

// Conversation is the durable record of a two-party thread, keyed by
// the unordered participant pair. Created lazily on first contact,
// never deleted.
type Conversation struct {
	ID string `json:"id"`

	// ParticipantLow and ParticipantHigh are the pair in sorted
	// order. The sort is a storage detail; use HasParticipant and
	// OtherParticipant instead of comparing against these directly.
	ParticipantLow  string `json:"participant_low"`
	ParticipantHigh string `json:"participant_high"`

	// LastMessageID points at the most recent message, empty when
	// the conversation has none (all deleted, or just created).
	LastMessageID string `json:"last_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID is one of the pair.
func (c Conversation) HasParticipant(userID string) bool {
	return userID == c.ParticipantLow || userID == c.ParticipantHigh
}

// OtherParticipant returns the peer of userID, or empty if userID is
// not a participant.
func (c Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.ParticipantLow:
		return c.ParticipantHigh
	case c.ParticipantHigh:
		return c.ParticipantLow
	}
	return ""
}

// Message is one message in a conversation. The id and conversation
// reference are immutable after creation; only Body, IsRead, and
// IsEdited ever change, and only by the parties the engine authorizes.
type Message struct {
	// ID is a UUIDv7: time-ordered, so (CreatedAt, ID) gives a total
	// order that survives equal timestamps.
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`

	// Body is empty for attachment-only messages.
	Body          string `json:"body,omitempty"`
	AttachmentRef string `json:"attachment_ref,omitempty"`

	IsRead   bool `json:"is_read"`
	IsEdited bool `json:"is_edited"`
	IsSystem bool `json:"is_system"`

	// Call is the structured call detail, set at write time on
	// system messages that narrate a call. Nil otherwise. Clients
	// render from this, never by inspecting Body text.
	Call *CallDetail `json:"call,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Call outcomes recorded on system messages.
const (
	CallOutcomeMissed   = "missed"
	CallOutcomeDeclined = "declined"
	CallOutcomeEnded    = "ended"
)

// CallDetail is the structured payload of a call-narration system
// message.
type CallDetail struct {
	CallID          string `json:"call_id"`
	MediaType       string `json:"media_type"` // "audio" or "video"
	Outcome         string `json:"outcome"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// ConversationSummary is one row of a user's conversation listing.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`

	// LastMessage is the preview, nil when the conversation is empty.
	LastMessage *Message `json:"last_message,omitempty"`

	// UnreadCount is the number of unread messages addressed to the
	// listing user.
	UnreadCount int `json:"unread_count"`
}
