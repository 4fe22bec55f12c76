// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package chat

// Event types broadcast on a conversation's channel. Every payload
// carries the record ids the mutation touched; receivers apply them
// idempotently or re-fetch from the store, never trusting arrival
// order.
const (
	EventNewMessage     = "new-message"
	EventMessageEdited  = "message-edited"
	EventMessageDeleted = "message-deleted"
	EventReadStatus     = "read-status"
)

// NewMessageEvent is the payload of EventNewMessage. It carries the
// full persisted message so receivers can render without a round trip;
// the id is what optimistic local copies reconcile against.
type NewMessageEvent struct {
	Message Message `json:"message"`
}

// MessageEditedEvent is the payload of EventMessageEdited.
type MessageEditedEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body"`
	EditedAt       int64  `json:"edited_at"` // Unix milliseconds
}

// MessageDeletedEvent is the payload of EventMessageDeleted.
type MessageDeletedEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// ReadStatusEvent is the payload of EventReadStatus.
type ReadStatusEvent struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
}
