// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "errors"

// Authorization and lookup failures are terminal: the API layer maps
// them straight to responses and nothing retries them.
var (
	// ErrNotFound means a stale conversation or message id.
	ErrNotFound = errors.New("chat: not found")

	// ErrNotParticipant means the actor is not a member of the
	// conversation.
	ErrNotParticipant = errors.New("chat: user is not a conversation participant")

	// ErrNotSender means someone other than the original sender tried
	// to edit or delete a message.
	ErrNotSender = errors.New("chat: only the sender may modify a message")

	// ErrEmptyMessage means a send with neither body nor attachment.
	ErrEmptyMessage = errors.New("chat: message needs a body or an attachment")

	// ErrSelfConversation means both participants are the same user.
	ErrSelfConversation = errors.New("chat: conversation requires two distinct participants")
)
