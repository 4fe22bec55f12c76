// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/transport"
)

// DefaultDedupWindow is the trailing window within which duplicate
// call narrations for the same call id are suppressed. Long enough to
// cover both clients independently reporting the same hang-up plus a
// retry, short enough that a genuine follow-up call narrates again.
const DefaultDedupWindow = 2 * time.Minute

// Config holds the parameters for creating an Engine.
type Config struct {
	// Store is the durable message store. Required.
	Store *Store

	// Transport publishes conversation events. Required.
	Transport transport.Transport

	// DedupWindow overrides DefaultDedupWindow when positive.
	DedupWindow time.Duration

	// Clock provides timestamps for the dedup cutoff and envelope
	// stamps. Required.
	Clock clock.Clock

	// Logger receives broadcast failures and engine lifecycle.
	// Required.
	Logger *slog.Logger
}

// Engine is the message synchronization engine. Every mutation goes
// persist-first: the store write is the operation, the broadcast is a
// best-effort hint. A failed publish is logged and dropped — the peer
// catches up from the store on its next sync.
type Engine struct {
	store       *Store
	transport   transport.Transport
	dedupWindow time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("chat: Config.Store is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("chat: Config.Transport is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("chat: Config.Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("chat: Config.Logger is required")
	}

	dedupWindow := cfg.DedupWindow
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}

	return &Engine{
		store:       cfg.Store,
		transport:   cfg.Transport,
		dedupWindow: dedupWindow,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}, nil
}

// GetOrCreateConversation returns the conversation for the unordered
// pair, creating it on first contact. Idempotent in either participant
// order and under concurrent calls.
func (e *Engine) GetOrCreateConversation(ctx context.Context, a, b string) (Conversation, error) {
	return e.store.GetOrCreateConversation(ctx, a, b)
}

// ListConversations returns the user's conversations with previews and
// unread counts, most recently active first.
func (e *Engine) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	return e.store.ListConversations(ctx, userID)
}

// Conversation returns the conversation by id. The caller must be a
// participant.
func (e *Engine) Conversation(ctx context.Context, conversationID, userID string) (Conversation, error) {
	conversation, err := e.store.ConversationByID(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	if !conversation.HasParticipant(userID) {
		return Conversation{}, ErrNotParticipant
	}
	return conversation, nil
}

// ListMessages returns the conversation's messages in render order.
// The caller must be a participant.
func (e *Engine) ListMessages(ctx context.Context, conversationID, userID string) ([]Message, error) {
	conversation, err := e.store.ConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return e.store.ListMessages(ctx, conversationID)
}

// SendMessage persists a message from senderID and broadcasts
// new-message on the conversation's channel. Returns the persisted
// message with its server-assigned id and timestamps; clients reconcile
// optimistic copies by that id, not by content.
func (e *Engine) SendMessage(ctx context.Context, conversationID, senderID, body, attachmentRef string) (Message, error) {
	if body == "" && attachmentRef == "" {
		return Message{}, ErrEmptyMessage
	}

	conversation, err := e.store.ConversationByID(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}
	if !conversation.HasParticipant(senderID) {
		return Message{}, ErrNotParticipant
	}

	message, err := e.store.AppendMessage(ctx, Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     conversation.OtherParticipant(senderID),
		Body:           body,
		AttachmentRef:  attachmentRef,
	})
	if err != nil {
		return Message{}, err
	}

	e.broadcast(ctx, conversationID, EventNewMessage, senderID, NewMessageEvent{Message: message})
	return message, nil
}

// EditMessage replaces the body of a message. Only the original sender
// may edit; the mutation is keyed by message id and broadcast as
// message-edited.
func (e *Engine) EditMessage(ctx context.Context, messageID, senderID, newBody string) (Message, error) {
	if newBody == "" {
		return Message{}, ErrEmptyMessage
	}

	message, err := e.store.MessageByID(ctx, messageID)
	if err != nil {
		return Message{}, err
	}
	if message.SenderID != senderID {
		return Message{}, ErrNotSender
	}

	updated, err := e.store.UpdateBody(ctx, messageID, newBody)
	if err != nil {
		return Message{}, err
	}

	e.broadcast(ctx, message.ConversationID, EventMessageEdited, senderID, MessageEditedEvent{
		MessageID:      messageID,
		ConversationID: message.ConversationID,
		Body:           newBody,
		EditedAt:       updated.UpdatedAt.UnixMilli(),
	})
	return updated, nil
}

// DeleteMessage removes a message. Only the original sender may
// delete. The conversation's last-message pointer falls back to the
// newest remaining message, or clears when none remain.
func (e *Engine) DeleteMessage(ctx context.Context, messageID, senderID string) error {
	message, err := e.store.MessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != senderID {
		return ErrNotSender
	}

	if err := e.store.DeleteMessage(ctx, messageID); err != nil {
		return err
	}

	e.broadcast(ctx, message.ConversationID, EventMessageDeleted, senderID, MessageDeletedEvent{
		MessageID:      messageID,
		ConversationID: message.ConversationID,
	})
	return nil
}

// MarkRead flips is_read on every message addressed to readerID in the
// conversation. Idempotent: a second call finds nothing unread and
// broadcasts nothing.
func (e *Engine) MarkRead(ctx context.Context, conversationID, readerID string) error {
	conversation, err := e.store.ConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(readerID) {
		return ErrNotParticipant
	}

	changed, err := e.store.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		return err
	}
	if changed == 0 {
		return nil
	}

	e.broadcast(ctx, conversationID, EventReadStatus, readerID, ReadStatusEvent{
		ConversationID: conversationID,
		ReaderID:       readerID,
	})
	return nil
}

// PostSystemMessage persists a call-narration system message,
// attributed to the participant who triggered the call event. Posts
// for a call id already narrated within the dedup window are
// suppressed and return the existing message — both clients reporting
// the same hang-up produce one row.
func (e *Engine) PostSystemMessage(ctx context.Context, conversationID, senderID, text string, detail CallDetail) (Message, error) {
	conversation, err := e.store.ConversationByID(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}
	if !conversation.HasParticipant(senderID) {
		return Message{}, ErrNotParticipant
	}

	if detail.CallID != "" {
		cutoff := e.clock.Now().Add(-e.dedupWindow)
		existing, err := e.store.RecentCallNarration(ctx, conversationID, detail.CallID, cutoff)
		if err == nil {
			e.logger.Info("duplicate call narration suppressed",
				"conversation", conversationID,
				"call", detail.CallID,
			)
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Message{}, err
		}
	}

	message, err := e.store.AppendMessage(ctx, Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     conversation.OtherParticipant(senderID),
		Body:           text,
		IsSystem:       true,
		Call:           &detail,
	})
	if err != nil {
		return Message{}, err
	}

	e.broadcast(ctx, conversationID, EventNewMessage, senderID, NewMessageEvent{Message: message})
	return message, nil
}

// broadcast publishes on the conversation's channel, best-effort with
// one immediate retry. Failures are logged, never returned: the store
// write already succeeded and durability does not depend on the
// transport.
func (e *Engine) broadcast(ctx context.Context, conversationID, eventType, actorID string, payload any) {
	env, err := transport.NewEnvelope(eventType, actorID, payload, e.clock.Now())
	if err != nil {
		e.logger.Error("encoding broadcast payload", "event", eventType, "error", err)
		return
	}

	channel := e.transport.Channel(transport.ConversationChannel(conversationID))
	if err := transport.PublishRetry(ctx, channel, env); err != nil {
		e.logger.Warn("broadcast dropped",
			"event", eventType,
			"conversation", conversationID,
			"error", err,
		)
	}
}
