// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hirewire/comms/lib/clock"
)

func openTestStore(t *testing.T, fakeClock *clock.FakeClock) *Store {
	t.Helper()

	store, err := OpenStore(StoreConfig{
		Path:     filepath.Join(t.TempDir(), "chat.db"),
		PoolSize: 1,
		Clock:    fakeClock,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func testClock() *clock.FakeClock {
	return clock.Fake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
}

func TestGetOrCreateConversationIdempotent(t *testing.T) {
	store := openTestStore(t, testClock())
	ctx := context.Background()

	first, err := store.GetOrCreateConversation(ctx, "user-5", "user-9")
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}
	if first.ID == "" {
		t.Fatal("conversation id is empty")
	}

	// Same pair, reversed participant order.
	second, err := store.GetOrCreateConversation(ctx, "user-9", "user-5")
	if err != nil {
		t.Fatalf("GetOrCreateConversation reversed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("reversed order created a second conversation: %q vs %q", second.ID, first.ID)
	}

	// A different pair is a different conversation.
	other, err := store.GetOrCreateConversation(ctx, "user-5", "user-7")
	if err != nil {
		t.Fatalf("GetOrCreateConversation other pair: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("distinct pairs share a conversation")
	}
}

func TestGetOrCreateConversationConcurrent(t *testing.T) {
	fakeClock := testClock()
	store, err := OpenStore(StoreConfig{
		Path:     filepath.Join(t.TempDir(), "chat.db"),
		PoolSize: 4,
		Clock:    fakeClock,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	// Both participants race on first contact.
	const racers = 8
	ids := make([]string, racers)
	var waitGroup sync.WaitGroup
	for i := 0; i < racers; i++ {
		waitGroup.Add(1)
		go func(i int) {
			defer waitGroup.Done()
			a, b := "user-5", "user-9"
			if i%2 == 1 {
				a, b = b, a
			}
			conversation, err := store.GetOrCreateConversation(context.Background(), a, b)
			if err != nil {
				t.Errorf("racer %d: %v", i, err)
				return
			}
			ids[i] = conversation.ID
		}(i)
	}
	waitGroup.Wait()

	for i := 1; i < racers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("racer %d got conversation %q, racer 0 got %q", i, ids[i], ids[0])
		}
	}
}

func TestGetOrCreateConversationRejectsSelf(t *testing.T) {
	store := openTestStore(t, testClock())

	_, err := store.GetOrCreateConversation(context.Background(), "user-5", "user-5")
	if !errors.Is(err, ErrSelfConversation) {
		t.Fatalf("err = %v, want ErrSelfConversation", err)
	}
}

func TestAppendAndListOrdering(t *testing.T) {
	store := openTestStore(t, testClock())
	ctx := context.Background()

	conversation, err := store.GetOrCreateConversation(ctx, "a", "b")
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}

	bodies := []string{"first", "second", "third"}
	for _, body := range bodies {
		_, err := store.AppendMessage(ctx, Message{
			ConversationID: conversation.ID,
			SenderID:       "a",
			ReceiverID:     "b",
			Body:           body,
		})
		if err != nil {
			t.Fatalf("AppendMessage %q: %v", body, err)
		}
	}

	messages, err := store.ListMessages(ctx, conversation.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != len(bodies) {
		t.Fatalf("got %d messages, want %d", len(messages), len(bodies))
	}
	for i, body := range bodies {
		if messages[i].Body != body {
			t.Errorf("messages[%d].Body = %q, want %q", i, messages[i].Body, body)
		}
		if messages[i].ID == "" {
			t.Errorf("messages[%d] has no server-assigned id", i)
		}
	}

	// The pointer tracks the newest message.
	conversation, err = store.ConversationByID(ctx, conversation.ID)
	if err != nil {
		t.Fatalf("ConversationByID: %v", err)
	}
	if conversation.LastMessageID != messages[2].ID {
		t.Errorf("LastMessageID = %q, want %q", conversation.LastMessageID, messages[2].ID)
	}
}

func TestAttachmentOnlyMessage(t *testing.T) {
	store := openTestStore(t, testClock())
	ctx := context.Background()

	conversation, _ := store.GetOrCreateConversation(ctx, "a", "b")
	message, err := store.AppendMessage(ctx, Message{
		ConversationID: conversation.ID,
		SenderID:       "a",
		ReceiverID:     "b",
		AttachmentRef:  "upload/resume.pdf",
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := store.MessageByID(ctx, message.ID)
	if err != nil {
		t.Fatalf("MessageByID: %v", err)
	}
	if got.Body != "" {
		t.Errorf("Body = %q, want empty for attachment-only message", got.Body)
	}
	if got.AttachmentRef != "upload/resume.pdf" {
		t.Errorf("AttachmentRef = %q", got.AttachmentRef)
	}
}

func TestDeleteRecomputesLastMessage(t *testing.T) {
	store := openTestStore(t, testClock())
	ctx := context.Background()

	conversation, _ := store.GetOrCreateConversation(ctx, "a", "b")
	var ids []string
	for _, body := range []string{"one", "two", "three"} {
		message, err := store.AppendMessage(ctx, Message{
			ConversationID: conversation.ID,
			SenderID:       "a",
			ReceiverID:     "b",
			Body:           body,
		})
		if err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		ids = append(ids, message.ID)
	}

	// Deleting the newest falls back to the next most recent.
	if err := store.DeleteMessage(ctx, ids[2]); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	conversation, _ = store.ConversationByID(ctx, conversation.ID)
	if conversation.LastMessageID != ids[1] {
		t.Errorf("LastMessageID = %q, want %q after deleting newest", conversation.LastMessageID, ids[1])
	}

	// Deleting the rest clears the pointer.
	if err := store.DeleteMessage(ctx, ids[1]); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := store.DeleteMessage(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	conversation, _ = store.ConversationByID(ctx, conversation.ID)
	if conversation.LastMessageID != "" {
		t.Errorf("LastMessageID = %q, want empty after deleting all messages", conversation.LastMessageID)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	store := openTestStore(t, testClock())
	ctx := context.Background()

	conversation, _ := store.GetOrCreateConversation(ctx, "a", "b")
	for i := 0; i < 3; i++ {
		if _, err := store.AppendMessage(ctx, Message{
			ConversationID: conversation.ID,
			SenderID:       "a",
			ReceiverID:     "b",
			Body:           "hello",
		}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	unread, err := store.UnreadCount(ctx, conversation.ID, "b")
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if unread != 3 {
		t.Fatalf("unread = %d, want 3", unread)
	}

	changed, err := store.MarkRead(ctx, conversation.ID, "b")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if changed != 3 {
		t.Fatalf("MarkRead changed %d rows, want 3", changed)
	}

	unread, _ = store.UnreadCount(ctx, conversation.ID, "b")
	if unread != 0 {
		t.Fatalf("unread after MarkRead = %d, want 0", unread)
	}

	// Second invocation is a no-op.
	changed, err = store.MarkRead(ctx, conversation.ID, "b")
	if err != nil {
		t.Fatalf("MarkRead second call: %v", err)
	}
	if changed != 0 {
		t.Fatalf("second MarkRead changed %d rows, want 0", changed)
	}
	unread, _ = store.UnreadCount(ctx, conversation.ID, "b")
	if unread != 0 {
		t.Fatalf("unread after second MarkRead = %d, want 0", unread)
	}
}

func TestMarkReadOnlyFlipsReceiverMessages(t *testing.T) {
	store := openTestStore(t, testClock())
	ctx := context.Background()

	conversation, _ := store.GetOrCreateConversation(ctx, "a", "b")
	sent, _ := store.AppendMessage(ctx, Message{
		ConversationID: conversation.ID, SenderID: "a", ReceiverID: "b", Body: "to b",
	})
	received, _ := store.AppendMessage(ctx, Message{
		ConversationID: conversation.ID, SenderID: "b", ReceiverID: "a", Body: "to a",
	})

	if _, err := store.MarkRead(ctx, conversation.ID, "b"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	got, _ := store.MessageByID(ctx, sent.ID)
	if !got.IsRead {
		t.Error("message addressed to b was not marked read")
	}
	got, _ = store.MessageByID(ctx, received.ID)
	if got.IsRead {
		t.Error("message addressed to a was marked read by b's MarkRead")
	}
}

func TestListConversationsSummary(t *testing.T) {
	fakeClock := testClock()
	store := openTestStore(t, fakeClock)
	ctx := context.Background()

	older, _ := store.GetOrCreateConversation(ctx, "me", "colleague")
	if _, err := store.AppendMessage(ctx, Message{
		ConversationID: older.ID, SenderID: "colleague", ReceiverID: "me", Body: "ping",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	fakeClock.Advance(time.Minute)

	newer, _ := store.GetOrCreateConversation(ctx, "me", "recruiter")
	for i := 0; i < 2; i++ {
		if _, err := store.AppendMessage(ctx, Message{
			ConversationID: newer.ID, SenderID: "recruiter", ReceiverID: "me", Body: "offer",
		}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	summaries, err := store.ListConversations(ctx, "me")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	// Most recently active first.
	if summaries[0].Conversation.ID != newer.ID {
		t.Errorf("summaries[0] = %q, want the recently active conversation", summaries[0].Conversation.ID)
	}
	if summaries[0].UnreadCount != 2 {
		t.Errorf("summaries[0].UnreadCount = %d, want 2", summaries[0].UnreadCount)
	}
	if summaries[0].LastMessage == nil || summaries[0].LastMessage.Body != "offer" {
		t.Errorf("summaries[0].LastMessage = %+v, want the offer preview", summaries[0].LastMessage)
	}
	if summaries[1].UnreadCount != 1 {
		t.Errorf("summaries[1].UnreadCount = %d, want 1", summaries[1].UnreadCount)
	}

	// A third user sees nothing.
	summaries, err = store.ListConversations(ctx, "stranger")
	if err != nil {
		t.Fatalf("ListConversations stranger: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("stranger sees %d conversations, want 0", len(summaries))
	}
}

func TestUpdateBodyMarksEdited(t *testing.T) {
	store := openTestStore(t, testClock())
	ctx := context.Background()

	conversation, _ := store.GetOrCreateConversation(ctx, "a", "b")
	message, _ := store.AppendMessage(ctx, Message{
		ConversationID: conversation.ID, SenderID: "a", ReceiverID: "b", Body: "typo",
	})

	updated, err := store.UpdateBody(ctx, message.ID, "fixed")
	if err != nil {
		t.Fatalf("UpdateBody: %v", err)
	}
	if updated.Body != "fixed" {
		t.Errorf("Body = %q, want %q", updated.Body, "fixed")
	}
	if !updated.IsEdited {
		t.Error("IsEdited = false after edit")
	}
	if updated.ID != message.ID || updated.ConversationID != message.ConversationID {
		t.Error("edit changed immutable fields")
	}
}

func TestMessageByIDNotFound(t *testing.T) {
	store := openTestStore(t, testClock())

	_, err := store.MessageByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecentCallNarration(t *testing.T) {
	fakeClock := testClock()
	store := openTestStore(t, fakeClock)
	ctx := context.Background()

	conversation, _ := store.GetOrCreateConversation(ctx, "a", "b")
	_, err := store.AppendMessage(ctx, Message{
		ConversationID: conversation.ID,
		SenderID:       "a",
		ReceiverID:     "b",
		Body:           "Video call ended",
		IsSystem:       true,
		Call: &CallDetail{
			CallID:          "call-a-b-1",
			MediaType:       "video",
			Outcome:         CallOutcomeEnded,
			DurationSeconds: 42,
		},
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	cutoff := fakeClock.Now().Add(-2 * time.Minute)
	got, err := store.RecentCallNarration(ctx, conversation.ID, "call-a-b-1", cutoff)
	if err != nil {
		t.Fatalf("RecentCallNarration: %v", err)
	}
	if got.Call == nil || got.Call.DurationSeconds != 42 {
		t.Fatalf("narration detail = %+v, want duration 42", got.Call)
	}

	// Outside the window, nothing matches.
	fakeClock.Advance(3 * time.Minute)
	cutoff = fakeClock.Now().Add(-2 * time.Minute)
	_, err = store.RecentCallNarration(ctx, conversation.ID, "call-a-b-1", cutoff)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound outside the window", err)
	}

	// A different call id never matches.
	_, err = store.RecentCallNarration(ctx, conversation.ID, "call-a-b-2", fakeClock.Now().Add(-time.Hour))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for unknown call id", err)
	}
}
