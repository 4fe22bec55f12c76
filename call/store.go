// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/lib/sqlitepool"
)

// Store persists call records. Status transitions are validated inside
// the same transaction that writes them, so two racing reports (both
// sides hanging up, a retry landing after the original) serialize on
// the row and resolve through the transition table instead of clobbering
// each other.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// StoreConfig holds the parameters for opening a call store.
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
	CREATE TABLE IF NOT EXISTS calls (
		id               TEXT PRIMARY KEY,
		conversation_id  TEXT NOT NULL,
		initiator_id     TEXT NOT NULL,
		recipient_id     TEXT NOT NULL,
		media_type       TEXT NOT NULL,
		status           TEXT NOT NULL,
		duration_seconds INTEGER,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calls_party_created
		ON calls (initiator_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_calls_recipient_created
		ON calls (recipient_id, created_at);
`

// OpenStore opens (and creates if necessary) the call database.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("call store: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("call store: Logger is required")
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
		return nil, fmt.Errorf("call store: %w", err)
	}

	return &Store{pool: pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Create inserts a call with status initiated. Idempotent on the call
// id: a retried create returns the existing record untouched.
func (s *Store) Create(ctx context.Context, c Call) (Call, error) {
	if c.ID == "" {
		return Call{}, fmt.Errorf("call store: empty call id")
	}
	if !ValidMediaType(c.Media) {
		return Call{}, fmt.Errorf("call store: %w: %q", ErrInvalidMedia, c.Media)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Call{}, fmt.Errorf("call store: create: %w", err)
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().UnixMilli()
	err = sqlitex.Execute(conn, `
		INSERT INTO calls (id, conversation_id, initiator_id, recipient_id, media_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		&sqlitex.ExecOptions{
			Args: []any{c.ID, c.ConversationID, c.InitiatorID, c.RecipientID, string(c.Media), string(StatusInitiated), now, now},
		})
	if err != nil {
		return Call{}, fmt.Errorf("call store: insert call: %w", err)
	}
	if conn.Changes() > 0 {
		s.logger.Info("call created",
			"call", c.ID,
			"initiator", c.InitiatorID,
			"recipient", c.RecipientID,
			"media", c.Media,
		)
	}

	return s.byIDConn(conn, c.ID)
}

// ByID returns the call, or ErrNotFound.
func (s *Store) ByID(ctx context.Context, id string) (Call, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Call{}, fmt.Errorf("call store: by id: %w", err)
	}
	defer s.pool.Put(conn)

	return s.byIDConn(conn, id)
}

const callColumns = `id, conversation_id, initiator_id, recipient_id, media_type, status, duration_seconds, created_at, updated_at`

func (s *Store) byIDConn(conn *sqlite.Conn, id string) (Call, error) {
	var c Call
	found := false
	err := sqlitex.Execute(conn, `SELECT `+callColumns+` FROM calls WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				c = scanCall(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Call{}, fmt.Errorf("call store: select call: %w", err)
	}
	if !found {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func scanCall(stmt *sqlite.Stmt) Call {
	return Call{
		ID:              stmt.ColumnText(0),
		ConversationID:  stmt.ColumnText(1),
		InitiatorID:     stmt.ColumnText(2),
		RecipientID:     stmt.ColumnText(3),
		Media:           MediaType(stmt.ColumnText(4)),
		Status:          Status(stmt.ColumnText(5)),
		DurationSeconds: stmt.ColumnInt(6),
		CreatedAt:       time.UnixMilli(stmt.ColumnInt64(7)),
		UpdatedAt:       time.UnixMilli(stmt.ColumnInt64(8)),
	}
}

// UpdateStatus applies a transition under the state machine. Repeating
// the call's current status is a no-op returning the record unchanged,
// so both sides of a call can report the same outcome. Duration is
// recorded only when the new status is ended; any other transition
// ignores it.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, durationSeconds int) (_ Call, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Call{}, fmt.Errorf("call store: update status: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Call{}, fmt.Errorf("call store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	current, err := s.byIDConn(conn, id)
	if err != nil {
		return Call{}, err
	}

	if current.Status == status {
		return current, nil
	}
	if !canTransition(current.Status, status) {
		return Call{}, fmt.Errorf("call store: %w: %s → %s", ErrInvalidTransition, current.Status, status)
	}

	now := s.clock.Now().UnixMilli()
	if status == StatusEnded {
		err = sqlitex.Execute(conn, `
			UPDATE calls SET status = ?, duration_seconds = ?, updated_at = ? WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{string(status), durationSeconds, now, id},
			})
	} else {
		err = sqlitex.Execute(conn, `
			UPDATE calls SET status = ?, updated_at = ? WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{string(status), now, id},
			})
	}
	if err != nil {
		return Call{}, fmt.Errorf("call store: write status: %w", err)
	}

	s.logger.Info("call status",
		"call", id,
		"from", current.Status,
		"to", status,
	)
	return s.byIDConn(conn, id)
}

// ActiveCall returns the user's most recent call that is still live
// (initiated or connected) and was created at or after cutoff. Returns
// ErrNotFound when the user is not in a call.
func (s *Store) ActiveCall(ctx context.Context, userID string, cutoff time.Time) (Call, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Call{}, fmt.Errorf("call store: active call: %w", err)
	}
	defer s.pool.Put(conn)

	var c Call
	found := false
	err = sqlitex.Execute(conn, `
		SELECT `+callColumns+` FROM calls
		WHERE (initiator_id = ? OR recipient_id = ?)
		  AND status IN (?, ?)
		  AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{userID, userID, string(StatusInitiated), string(StatusConnected), cutoff.UnixMilli()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				c = scanCall(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Call{}, fmt.Errorf("call store: select active call: %w", err)
	}
	if !found {
		return Call{}, ErrNotFound
	}
	return c, nil
}

// History returns the user's calls, most recent first. When otherUserID
// is non-empty, only calls between the two users are returned.
func (s *Store) History(ctx context.Context, userID, otherUserID string) ([]Call, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("call store: history: %w", err)
	}
	defer s.pool.Put(conn)

	query := `
		SELECT ` + callColumns + ` FROM calls
		WHERE (initiator_id = ? OR recipient_id = ?)`
	args := []any{userID, userID}
	if otherUserID != "" {
		query += ` AND (initiator_id = ? OR recipient_id = ?)`
		args = append(args, otherUserID, otherUserID)
	}
	query += ` ORDER BY created_at DESC`

	var calls []Call
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			calls = append(calls, scanCall(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call store: select history: %w", err)
	}
	return calls, nil
}
