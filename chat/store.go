// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/lib/sqlitepool"
)

// Store persists conversations and messages. It is the durable side of
// the synchronization engine: broadcasts may be lost, rows may not.
//
// Write path: AppendMessage inserts the message and moves the
// conversation's last-message pointer in one IMMEDIATE transaction, so
// the pointer can never reference a message that failed to insert.
//
// Concurrency: both participants may hit the store at once (racing
// first contact, simultaneous mark-read). Every such path is an
// idempotent upsert or a conditional update — no application locks.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// StoreConfig holds the parameters for opening a chat store.
type StoreConfig struct {
	// Path is the SQLite database file. Required.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Clock provides timestamps. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

const schema = `
	CREATE TABLE IF NOT EXISTS conversations (
		id               TEXT PRIMARY KEY,
		participant_low  TEXT NOT NULL,
		participant_high TEXT NOT NULL,
		last_message_id  TEXT,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL,
		UNIQUE (participant_low, participant_high)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		sender_id       TEXT NOT NULL,
		receiver_id     TEXT NOT NULL,
		body            TEXT,
		attachment_ref  TEXT,
		is_read         INTEGER NOT NULL DEFAULT 0,
		is_edited       INTEGER NOT NULL DEFAULT 0,
		is_system       INTEGER NOT NULL DEFAULT 0,
		call_id         TEXT,
		call_media      TEXT,
		call_outcome    TEXT,
		call_duration   INTEGER,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages (conversation_id, created_at, id);
	CREATE INDEX IF NOT EXISTS idx_messages_unread
		ON messages (conversation_id, receiver_id, is_read);
	CREATE INDEX IF NOT EXISTS idx_messages_call
		ON messages (call_id) WHERE call_id IS NOT NULL;
`

// OpenStore opens (and creates if necessary) the chat database.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("chat store: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("chat store: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat store: %w", err)
	}

	return &Store{pool: pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// participantPair returns the unordered pair in storage order.
func participantPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

// GetOrCreateConversation returns the conversation for the unordered
// pair {a, b}, creating it if none exists. Safe under concurrent calls
// from both participants: the insert is ON CONFLICT DO NOTHING against
// the pair's uniqueness constraint, and the result always comes from a
// follow-up lookup rather than a pre-check.
func (s *Store) GetOrCreateConversation(ctx context.Context, a, b string) (Conversation, error) {
	if a == "" || b == "" {
		return Conversation{}, fmt.Errorf("chat store: empty participant id")
	}
	if a == b {
		return Conversation{}, ErrSelfConversation
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Conversation{}, fmt.Errorf("chat store: get or create conversation: %w", err)
	}
	defer s.pool.Put(conn)

	low, high := participantPair(a, b)
	now := s.clock.Now().UnixMilli()

	err = sqlitex.Execute(conn, `
		INSERT INTO conversations (id, participant_low, participant_high, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (participant_low, participant_high) DO NOTHING`,
		&sqlitex.ExecOptions{
			Args: []any{uuid.NewString(), low, high, now, now},
		})
	if err != nil {
		return Conversation{}, fmt.Errorf("chat store: insert conversation: %w", err)
	}
	if conn.Changes() > 0 {
		s.logger.Info("conversation created", "participants", low+","+high)
	}

	conversation, err := s.conversationByPair(conn, low, high)
	if err != nil {
		return Conversation{}, fmt.Errorf("chat store: lookup after insert: %w", err)
	}
	return conversation, nil
}

// ConversationByID returns the conversation, or ErrNotFound.
func (s *Store) ConversationByID(ctx context.Context, id string) (Conversation, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Conversation{}, fmt.Errorf("chat store: conversation by id: %w", err)
	}
	defer s.pool.Put(conn)

	return s.conversationByIDConn(conn, id)
}

func (s *Store) conversationByIDConn(conn *sqlite.Conn, id string) (Conversation, error) {
	var conversation Conversation
	found := false
	err := sqlitex.Execute(conn, `
		SELECT id, participant_low, participant_high, last_message_id, created_at, updated_at
		FROM conversations WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				conversation = scanConversation(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Conversation{}, fmt.Errorf("chat store: select conversation: %w", err)
	}
	if !found {
		return Conversation{}, ErrNotFound
	}
	return conversation, nil
}

func (s *Store) conversationByPair(conn *sqlite.Conn, low, high string) (Conversation, error) {
	var conversation Conversation
	found := false
	err := sqlitex.Execute(conn, `
		SELECT id, participant_low, participant_high, last_message_id, created_at, updated_at
		FROM conversations WHERE participant_low = ? AND participant_high = ?`,
		&sqlitex.ExecOptions{
			Args: []any{low, high},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				conversation = scanConversation(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Conversation{}, err
	}
	if !found {
		return Conversation{}, ErrNotFound
	}
	return conversation, nil
}

func scanConversation(stmt *sqlite.Stmt) Conversation {
	return Conversation{
		ID:              stmt.ColumnText(0),
		ParticipantLow:  stmt.ColumnText(1),
		ParticipantHigh: stmt.ColumnText(2),
		LastMessageID:   stmt.ColumnText(3),
		CreatedAt:       time.UnixMilli(stmt.ColumnInt64(4)),
		UpdatedAt:       time.UnixMilli(stmt.ColumnInt64(5)),
	}
}

// ListConversations returns the user's conversations, most recently
// updated first, each with its preview message and the user's unread
// count.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat store: list conversations: %w", err)
	}
	defer s.pool.Put(conn)

	var summaries []ConversationSummary
	err = sqlitex.Execute(conn, `
		SELECT id, participant_low, participant_high, last_message_id, created_at, updated_at,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = conversations.id
			   AND m.receiver_id = ? AND m.is_read = 0)
		FROM conversations
		WHERE participant_low = ? OR participant_high = ?
		ORDER BY updated_at DESC`,
		&sqlitex.ExecOptions{
			Args: []any{userID, userID, userID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				summaries = append(summaries, ConversationSummary{
					Conversation: scanConversation(stmt),
					UnreadCount:  stmt.ColumnInt(6),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("chat store: select conversations: %w", err)
	}

	// Attach previews in a second pass; the listing is small and this
	// keeps the row scan simple.
	for i := range summaries {
		lastID := summaries[i].Conversation.LastMessageID
		if lastID == "" {
			continue
		}
		message, err := s.messageByIDConn(conn, lastID)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries[i].LastMessage = &message
	}

	return summaries, nil
}

// AppendMessage persists a new message and moves the conversation's
// last-message pointer, in one transaction. The message's id and
// timestamps are assigned here; the populated message is returned.
func (s *Store) AppendMessage(ctx context.Context, m Message) (_ Message, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("chat store: append message: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Message{}, fmt.Errorf("chat store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	id, err := uuid.NewV7()
	if err != nil {
		return Message{}, fmt.Errorf("chat store: generating message id: %w", err)
	}
	m.ID = id.String()
	now := s.clock.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	var callID, callMedia, callOutcome, callDuration any
	if m.Call != nil {
		callID = m.Call.CallID
		callMedia = m.Call.MediaType
		callOutcome = m.Call.Outcome
		callDuration = m.Call.DurationSeconds
	}

	var body any
	if m.Body != "" {
		body = m.Body
	}
	var attachment any
	if m.AttachmentRef != "" {
		attachment = m.AttachmentRef
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO messages
			(id, conversation_id, sender_id, receiver_id, body, attachment_ref,
			 is_read, is_edited, is_system, call_id, call_media, call_outcome,
			 call_duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				m.ID, m.ConversationID, m.SenderID, m.ReceiverID, body, attachment,
				boolToInt(m.IsSystem), callID, callMedia, callOutcome, callDuration,
				now.UnixMilli(), now.UnixMilli(),
			},
		})
	if err != nil {
		return Message{}, fmt.Errorf("chat store: insert message: %w", err)
	}

	err = sqlitex.Execute(conn, `
		UPDATE conversations SET last_message_id = ?, updated_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{m.ID, now.UnixMilli(), m.ConversationID},
		})
	if err != nil {
		return Message{}, fmt.Errorf("chat store: update last message pointer: %w", err)
	}

	return m, nil
}

// MessageByID returns the message, or ErrNotFound.
func (s *Store) MessageByID(ctx context.Context, id string) (Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("chat store: message by id: %w", err)
	}
	defer s.pool.Put(conn)

	return s.messageByIDConn(conn, id)
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, body, attachment_ref,
	is_read, is_edited, is_system, call_id, call_media, call_outcome, call_duration,
	created_at, updated_at`

func (s *Store) messageByIDConn(conn *sqlite.Conn, id string) (Message, error) {
	var message Message
	found := false
	err := sqlitex.Execute(conn,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				message = scanMessage(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Message{}, fmt.Errorf("chat store: select message: %w", err)
	}
	if !found {
		return Message{}, ErrNotFound
	}
	return message, nil
}

func scanMessage(stmt *sqlite.Stmt) Message {
	message := Message{
		ID:             stmt.ColumnText(0),
		ConversationID: stmt.ColumnText(1),
		SenderID:       stmt.ColumnText(2),
		ReceiverID:     stmt.ColumnText(3),
		Body:           stmt.ColumnText(4),
		AttachmentRef:  stmt.ColumnText(5),
		IsRead:         stmt.ColumnInt(6) != 0,
		IsEdited:       stmt.ColumnInt(7) != 0,
		IsSystem:       stmt.ColumnInt(8) != 0,
		CreatedAt:      time.UnixMilli(stmt.ColumnInt64(13)),
		UpdatedAt:      time.UnixMilli(stmt.ColumnInt64(14)),
	}
	if callID := stmt.ColumnText(9); callID != "" {
		message.Call = &CallDetail{
			CallID:          callID,
			MediaType:       stmt.ColumnText(10),
			Outcome:         stmt.ColumnText(11),
			DurationSeconds: stmt.ColumnInt(12),
		}
	}
	return message
}

// ListMessages returns the conversation's messages ordered by creation
// time with id as tie-break — the render order, regardless of how the
// transport delivered them.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat store: list messages: %w", err)
	}
	defer s.pool.Put(conn)

	var messages []Message
	err = sqlitex.Execute(conn,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at, id`,
		&sqlitex.ExecOptions{
			Args: []any{conversationID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				messages = append(messages, scanMessage(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("chat store: select messages: %w", err)
	}
	return messages, nil
}

// UpdateBody replaces a message's body and marks it edited.
func (s *Store) UpdateBody(ctx context.Context, id, newBody string) (Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("chat store: update body: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		UPDATE messages SET body = ?, is_edited = 1, updated_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{newBody, s.clock.Now().UnixMilli(), id},
		})
	if err != nil {
		return Message{}, fmt.Errorf("chat store: update message body: %w", err)
	}
	if conn.Changes() == 0 {
		return Message{}, ErrNotFound
	}
	return s.messageByIDConn(conn, id)
}

// DeleteMessage removes the message and recomputes the conversation's
// last-message pointer: the newest remaining message, or cleared when
// none remain.
func (s *Store) DeleteMessage(ctx context.Context, id string) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("chat store: delete message: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("chat store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	message, err := s.messageByIDConn(conn, id)
	if err != nil {
		return err
	}

	err = sqlitex.Execute(conn, `DELETE FROM messages WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("chat store: delete message row: %w", err)
	}

	err = sqlitex.Execute(conn, `
		UPDATE conversations SET
			last_message_id = (
				SELECT id FROM messages
				WHERE conversation_id = ?
				ORDER BY created_at DESC, id DESC LIMIT 1
			),
			updated_at = ?
		WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{message.ConversationID, s.clock.Now().UnixMilli(), message.ConversationID},
		})
	if err != nil {
		return fmt.Errorf("chat store: recompute last message pointer: %w", err)
	}
	return nil
}

// MarkRead flips is_read on every unread message addressed to readerID
// in the conversation. Returns the number of messages flipped — zero
// when everything was already read, which is the idempotent no-op case.
func (s *Store) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("chat store: mark read: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		UPDATE messages SET is_read = 1, updated_at = ?
		WHERE conversation_id = ? AND receiver_id = ? AND is_read = 0`,
		&sqlitex.ExecOptions{
			Args: []any{s.clock.Now().UnixMilli(), conversationID, readerID},
		})
	if err != nil {
		return 0, fmt.Errorf("chat store: mark read update: %w", err)
	}
	return conn.Changes(), nil
}

// UnreadCount returns the number of unread messages addressed to
// readerID in the conversation.
func (s *Store) UnreadCount(ctx context.Context, conversationID, readerID string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("chat store: unread count: %w", err)
	}
	defer s.pool.Put(conn)

	count := 0
	err = sqlitex.Execute(conn, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = ? AND receiver_id = ? AND is_read = 0`,
		&sqlitex.ExecOptions{
			Args: []any{conversationID, readerID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("chat store: count unread: %w", err)
	}
	return count, nil
}

// RecentCallNarration returns the newest system message for the given
// call id created at or after the cutoff, or ErrNotFound. This is the
// dedup lookup for PostSystemMessage.
func (s *Store) RecentCallNarration(ctx context.Context, conversationID, callID string, cutoff time.Time) (Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("chat store: recent call narration: %w", err)
	}
	defer s.pool.Put(conn)

	var message Message
	found := false
	err = sqlitex.Execute(conn,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = ? AND is_system = 1 AND call_id = ? AND created_at >= ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{conversationID, callID, cutoff.UnixMilli()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				message = scanMessage(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Message{}, fmt.Errorf("chat store: select call narration: %w", err)
	}
	if !found {
		return Message{}, ErrNotFound
	}
	return message, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SortMessages orders messages by (CreatedAt, ID), the same order the
// store queries return. Clients use it to merge broadcast arrivals into
// a locally cached slice.
func SortMessages(messages []Message) {
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID < messages[j].ID
	})
}
