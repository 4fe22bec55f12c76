// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hirewire/comms/call"
	"github.com/hirewire/comms/chat"
	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/transport"
)

type apiFixture struct {
	handler http.Handler
	clock   *clock.FakeClock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	logger := slog.New(slog.DiscardHandler)
	broker := transport.NewMemoryBroker()

	chatStore, err := chat.OpenStore(chat.StoreConfig{
		Path:     filepath.Join(t.TempDir(), "chat.db"),
		PoolSize: 1,
		Clock:    fakeClock,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("chat.OpenStore: %v", err)
	}
	t.Cleanup(func() { chatStore.Close() })

	chatEngine, err := chat.NewEngine(chat.Config{
		Store:     chatStore,
		Transport: broker.Client("service"),
		Clock:     fakeClock,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("chat.NewEngine: %v", err)
	}

	callStore, err := call.OpenStore(call.StoreConfig{
		Path:     filepath.Join(t.TempDir(), "calls.db"),
		PoolSize: 1,
		Clock:    fakeClock,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("call.OpenStore: %v", err)
	}
	t.Cleanup(func() { callStore.Close() })

	calls, err := call.NewManager(call.Config{
		Store:  callStore,
		Clock:  fakeClock,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("call.NewManager: %v", err)
	}

	return &apiFixture{
		handler: NewHandler(HandlerConfig{
			Chat:  chatEngine,
			Calls: calls,
			Settings: ClientSettings{
				ICEServers:           []ICEServer{{URLs: []string{"stun:stun.example.net:3478"}}},
				AnswerTimeoutSeconds: 30,
				TypingDebounceMillis: 500,
				TypingExpiryMillis:   3000,
			},
			Logger: logger,
		}),
		clock: fakeClock,
	}
}

// do runs one request as the given user and decodes the JSON response
// into out (when out is non-nil).
func (f *apiFixture) do(t *testing.T, user, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	if user != "" {
		request.Header.Set(userHeader, user)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)

	if out != nil && recorder.Code < 300 {
		if err := json.Unmarshal(recorder.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decoding response %q: %v", method, path, recorder.Body.String(), err)
		}
	}
	return recorder
}

func (f *apiFixture) conversation(t *testing.T, user, other string) chat.Conversation {
	t.Helper()

	var conversation chat.Conversation
	recorder := f.do(t, user, http.MethodPost, "/v1/conversations",
		map[string]string{"participant_id": other}, &conversation)
	if recorder.Code != http.StatusOK {
		t.Fatalf("create conversation: status %d: %s", recorder.Code, recorder.Body.String())
	}
	return conversation
}

func TestMissingUserHeader(t *testing.T) {
	fixture := newAPIFixture(t)

	recorder := fixture.do(t, "", http.MethodGet, "/v1/conversations", nil, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestClientSettings(t *testing.T) {
	fixture := newAPIFixture(t)

	recorder := fixture.do(t, "", http.MethodGet, "/v1/settings", nil, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d, want 401", recorder.Code)
	}

	var settings ClientSettings
	recorder = fixture.do(t, "alice", http.MethodGet, "/v1/settings", nil, &settings)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(settings.ICEServers) != 1 || settings.ICEServers[0].URLs[0] != "stun:stun.example.net:3478" {
		t.Errorf("ICEServers = %+v", settings.ICEServers)
	}
	if settings.AnswerTimeoutSeconds != 30 || settings.TypingDebounceMillis != 500 || settings.TypingExpiryMillis != 3000 {
		t.Errorf("settings = %+v", settings)
	}
}

func TestConversationAndMessageRoundTrip(t *testing.T) {
	fixture := newAPIFixture(t)

	conversation := fixture.conversation(t, "alice", "bob")

	// Idempotent from the other side.
	again := fixture.conversation(t, "bob", "alice")
	if again.ID != conversation.ID {
		t.Fatalf("conversation ids differ: %q vs %q", again.ID, conversation.ID)
	}

	var message chat.Message
	recorder := fixture.do(t, "alice", http.MethodPost, "/v1/conversations/"+conversation.ID+"/messages",
		map[string]string{"body": "hello"}, &message)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("send message: status %d: %s", recorder.Code, recorder.Body.String())
	}
	if message.ID == "" || message.Body != "hello" {
		t.Fatalf("message = %+v", message)
	}

	var messages []chat.Message
	recorder = fixture.do(t, "bob", http.MethodGet, "/v1/conversations/"+conversation.ID+"/messages", nil, &messages)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list messages: status %d", recorder.Code)
	}
	if len(messages) != 1 || messages[0].ID != message.ID {
		t.Fatalf("messages = %+v", messages)
	}

	var summaries []chat.ConversationSummary
	recorder = fixture.do(t, "bob", http.MethodGet, "/v1/conversations", nil, &summaries)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list conversations: status %d", recorder.Code)
	}
	if len(summaries) != 1 || summaries[0].UnreadCount != 1 {
		t.Fatalf("summaries = %+v", summaries)
	}

	recorder = fixture.do(t, "bob", http.MethodPost, "/v1/conversations/"+conversation.ID+"/read", nil, nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("mark read: status %d", recorder.Code)
	}
}

func TestAuthorizationStatusCodes(t *testing.T) {
	fixture := newAPIFixture(t)

	conversation := fixture.conversation(t, "alice", "bob")
	var message chat.Message
	fixture.do(t, "alice", http.MethodPost, "/v1/conversations/"+conversation.ID+"/messages",
		map[string]string{"body": "hi"}, &message)

	// Outsider reading the conversation.
	recorder := fixture.do(t, "stranger", http.MethodGet, "/v1/conversations/"+conversation.ID+"/messages", nil, nil)
	if recorder.Code != http.StatusForbidden {
		t.Errorf("stranger list: status = %d, want 403", recorder.Code)
	}

	// The other participant editing someone else's message.
	recorder = fixture.do(t, "bob", http.MethodPatch, "/v1/messages/"+message.ID,
		map[string]string{"body": "hijacked"}, nil)
	if recorder.Code != http.StatusForbidden {
		t.Errorf("non-sender edit: status = %d, want 403", recorder.Code)
	}

	// Stale ids.
	recorder = fixture.do(t, "alice", http.MethodPatch, "/v1/messages/missing",
		map[string]string{"body": "x"}, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("missing message: status = %d, want 404", recorder.Code)
	}

	// Empty message body.
	recorder = fixture.do(t, "alice", http.MethodPost, "/v1/conversations/"+conversation.ID+"/messages",
		map[string]string{}, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("empty message: status = %d, want 400", recorder.Code)
	}

	// Conversation with yourself.
	recorder = fixture.do(t, "alice", http.MethodPost, "/v1/conversations",
		map[string]string{"participant_id": "alice"}, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("self conversation: status = %d, want 400", recorder.Code)
	}

	// Deleting as the sender succeeds.
	recorder = fixture.do(t, "alice", http.MethodDelete, "/v1/messages/"+message.ID, nil, nil)
	if recorder.Code != http.StatusNoContent {
		t.Errorf("sender delete: status = %d, want 204", recorder.Code)
	}
}

func TestCreateCallRequiresParticipation(t *testing.T) {
	fixture := newAPIFixture(t)

	conversation := fixture.conversation(t, "alice", "bob")
	request := func(user, recipient string) int {
		recorder := fixture.do(t, user, http.MethodPost, "/v1/calls", map[string]string{
			"call_id":         call.NewCallID(user, recipient, fixture.clock.Now()),
			"conversation_id": conversation.ID,
			"recipient_id":    recipient,
			"media_type":      "audio",
		}, nil)
		return recorder.Code
	}

	// An outsider may not attach call records to the conversation.
	if code := request("stranger", "bob"); code != http.StatusForbidden {
		t.Errorf("stranger initiator: status = %d, want 403", code)
	}

	// Nor may a participant call someone outside it.
	if code := request("alice", "carol"); code != http.StatusForbidden {
		t.Errorf("outside recipient: status = %d, want 403", code)
	}

	// Unknown conversation id.
	recorder := fixture.do(t, "alice", http.MethodPost, "/v1/calls", map[string]string{
		"call_id":         call.NewCallID("alice", "bob", fixture.clock.Now()),
		"conversation_id": "missing",
		"recipient_id":    "bob",
		"media_type":      "audio",
	}, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("missing conversation: status = %d, want 404", recorder.Code)
	}

	if code := request("alice", "bob"); code != http.StatusCreated {
		t.Errorf("participant call: status = %d, want 201", code)
	}
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	fixture := newAPIFixture(t)

	conversation := fixture.conversation(t, "alice", "bob")
	callID := call.NewCallID("alice", "bob", fixture.clock.Now())

	var record call.Call
	recorder := fixture.do(t, "alice", http.MethodPost, "/v1/calls", map[string]string{
		"call_id":         callID,
		"conversation_id": conversation.ID,
		"recipient_id":    "bob",
		"media_type":      "video",
	}, &record)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create call: status %d: %s", recorder.Code, recorder.Body.String())
	}
	if record.Status != call.StatusInitiated {
		t.Fatalf("Status = %q", record.Status)
	}

	// Both parties show as in a call.
	var active map[string]bool
	fixture.do(t, "bob", http.MethodGet, "/v1/calls/active", nil, &active)
	if !active["in_call"] {
		t.Error("bob not in_call during ringing")
	}

	// A third party may not report status on the call.
	recorder = fixture.do(t, "stranger", http.MethodPatch, "/v1/calls/"+callID,
		map[string]any{"status": "connected"}, nil)
	if recorder.Code != http.StatusForbidden {
		t.Errorf("stranger update: status = %d, want 403", recorder.Code)
	}

	// Invalid jump: initiated → ended.
	recorder = fixture.do(t, "alice", http.MethodPatch, "/v1/calls/"+callID,
		map[string]any{"status": "ended", "duration": 10}, nil)
	if recorder.Code != http.StatusConflict {
		t.Errorf("initiated → ended: status = %d, want 409", recorder.Code)
	}

	fixture.do(t, "bob", http.MethodPatch, "/v1/calls/"+callID, map[string]any{"status": "connected"}, nil)
	recorder = fixture.do(t, "alice", http.MethodPatch, "/v1/calls/"+callID,
		map[string]any{"status": "ended", "duration": 65}, &record)
	if recorder.Code != http.StatusOK {
		t.Fatalf("end call: status %d: %s", recorder.Code, recorder.Body.String())
	}
	if record.DurationSeconds != 65 {
		t.Errorf("DurationSeconds = %d, want 65", record.DurationSeconds)
	}

	var history []call.HistoryEntry
	fixture.do(t, "alice", http.MethodGet, "/v1/calls?other=bob", nil, &history)
	if len(history) != 1 {
		t.Fatalf("history = %+v", history)
	}
	if history[0].DurationText != "1 minute 5 seconds" {
		t.Errorf("DurationText = %q", history[0].DurationText)
	}

	fixture.do(t, "alice", http.MethodGet, "/v1/calls/active", nil, &active)
	if active["in_call"] {
		t.Error("alice still in_call after the call ended")
	}

	// Unknown call id.
	recorder = fixture.do(t, "alice", http.MethodPatch, "/v1/calls/missing",
		map[string]any{"status": "connected"}, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("missing call: status = %d, want 404", recorder.Code)
	}
}
