// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hirewire/comms/call"
	"github.com/hirewire/comms/chat"
)

// userHeader carries the authenticated user id, injected by the
// session layer in front of this service.
const userHeader = "X-Comms-User"

// HandlerConfig holds the dependencies for the API handler.
type HandlerConfig struct {
	// Chat is the message engine. Required.
	Chat *chat.Engine

	// Calls is the call manager. Required.
	Calls *call.Manager

	// Settings is served to clients from /v1/settings.
	Settings ClientSettings

	// Logger receives request failures. Required.
	Logger *slog.Logger
}

// ClientSettings is what a browser client needs to run its signaling
// and presence engines: ICE servers for the peer connection, the ring
// window, and the typing debounce/expiry intervals. Served on
// /v1/settings so the service config is the single source for them.
type ClientSettings struct {
	ICEServers           []ICEServer `json:"ice_servers"`
	AnswerTimeoutSeconds int         `json:"answer_timeout_seconds"`
	TypingDebounceMillis int         `json:"typing_debounce_ms"`
	TypingExpiryMillis   int         `json:"typing_expiry_ms"`
}

// ICEServer is one STUN/TURN entry in the client settings.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type handler struct {
	chat     *chat.Engine
	calls    *call.Manager
	settings ClientSettings
	logger   *slog.Logger
}

// NewHandler builds the /v1/ API router.
func NewHandler(cfg HandlerConfig) http.Handler {
	if cfg.Chat == nil {
		panic("api.NewHandler: Chat is required")
	}
	if cfg.Calls == nil {
		panic("api.NewHandler: Calls is required")
	}
	if cfg.Logger == nil {
		panic("api.NewHandler: Logger is required")
	}

	h := &handler{chat: cfg.Chat, calls: cfg.Calls, settings: cfg.Settings, logger: cfg.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/settings", h.clientSettings)
	mux.HandleFunc("POST /v1/conversations", h.createConversation)
	mux.HandleFunc("GET /v1/conversations", h.listConversations)
	mux.HandleFunc("GET /v1/conversations/{id}/messages", h.listMessages)
	mux.HandleFunc("POST /v1/conversations/{id}/messages", h.sendMessage)
	mux.HandleFunc("POST /v1/conversations/{id}/read", h.markRead)
	mux.HandleFunc("PATCH /v1/messages/{id}", h.editMessage)
	mux.HandleFunc("DELETE /v1/messages/{id}", h.deleteMessage)
	mux.HandleFunc("POST /v1/calls", h.createCall)
	mux.HandleFunc("PATCH /v1/calls/{id}", h.updateCall)
	mux.HandleFunc("GET /v1/calls", h.callHistory)
	mux.HandleFunc("GET /v1/calls/active", h.activeCall)
	return mux
}

// clientSettings serves the signaling and presence parameters.
// Authenticated: TURN entries may carry credentials.
func (h *handler) clientSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}

	settings := h.settings
	if settings.ICEServers == nil {
		settings.ICEServers = []ICEServer{}
	}
	writeJSON(w, http.StatusOK, settings)
}

// userID extracts the authenticated user, or writes 401.
func (h *handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("missing %s header", userHeader))
		return "", false
	}
	return userID, true
}

func (h *handler) createConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, errors.New("participant_id is required"))
		return
	}

	conversation, err := h.chat.GetOrCreateConversation(r.Context(), userID, req.ParticipantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	summaries, err := h.chat.ListConversations(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []chat.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	messages, err := h.chat.ListMessages(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Body          string `json:"body"`
		AttachmentRef string `json:"attachment_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	message, err := h.chat.SendMessage(r.Context(), r.PathValue("id"), userID, req.Body, req.AttachmentRef)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.chat.MarkRead(r.Context(), r.PathValue("id"), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) editMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	message, err := h.chat.EditMessage(r.Context(), r.PathValue("id"), userID, req.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (h *handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.chat.DeleteMessage(r.Context(), r.PathValue("id"), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) createCall(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		CallID         string `json:"call_id"`
		ConversationID string `json:"conversation_id"`
		RecipientID    string `json:"recipient_id"`
		MediaType      string `json:"media_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	if req.CallID == "" || req.ConversationID == "" || req.RecipientID == "" {
		writeError(w, http.StatusBadRequest, errors.New("call_id, conversation_id, and recipient_id are required"))
		return
	}
	if req.RecipientID == userID {
		writeError(w, http.StatusBadRequest, errors.New("cannot call yourself"))
		return
	}

	// Call records hang off a conversation; both ends of the call must
	// be its participants.
	conversation, err := h.chat.Conversation(r.Context(), req.ConversationID, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !conversation.HasParticipant(req.RecipientID) {
		writeError(w, http.StatusForbidden, errors.New("recipient is not a conversation participant"))
		return
	}

	record, err := h.calls.Create(r.Context(), call.Call{
		ID:             req.CallID,
		ConversationID: req.ConversationID,
		InitiatorID:    userID,
		RecipientID:    req.RecipientID,
		Media:          call.MediaType(req.MediaType),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *handler) updateCall(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status   string `json:"status"`
		Duration int    `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	// Only a party to the call may report its status.
	record, err := h.calls.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !record.HasParty(userID) {
		writeError(w, http.StatusForbidden, errors.New("not a party to this call"))
		return
	}

	updated, err := h.calls.UpdateStatus(r.Context(), record.ID, call.Status(req.Status), req.Duration)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) callHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	entries, err := h.calls.History(r.Context(), userID, r.URL.Query().Get("other"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []call.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) activeCall(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	inCall, err := h.calls.InActiveCall(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"in_call": inCall})
}

// fail maps engine errors onto HTTP status codes.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrNotParticipant), errors.Is(err, chat.ErrNotSender):
		status = http.StatusForbidden
	case errors.Is(err, chat.ErrNotFound), errors.Is(err, call.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, call.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrSelfConversation),
		errors.Is(err, call.ErrInvalidMedia):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
