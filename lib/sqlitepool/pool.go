// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the house SQLite connection pool.
//
// The chat and call stores are the durable source of truth for the
// realtime layer — every broadcast is a best-effort hint that clients
// reconcile against these tables. The pool wraps zombiezen.com/go/sqlite
// with pragmas tuned for that workload: WAL journaling so read-mostly
// listing queries never block message inserts, NORMAL synchronous for
// process-crash durability, a busy timeout to absorb write contention
// when both participants mutate the same conversation, and foreign keys
// ON because messages reference their conversation row and the schema
// relies on that integrity.
//
// Callers [Pool.Take] a connection, do their work, and [Pool.Put] it
// back. Connections are not safe for concurrent use; each goroutine
// holds its own for the duration of its work. There is no query builder
// and no ORM — stores write SQL and use sqlitex directly, which is the
// whole point of keeping this package thin.
//
// Tests open their databases under t.TempDir(); the pool always holds
// multiple-connection-capable databases, and SQLite's plain ":memory:"
// path is rejected by sqlitex for exactly that reason.
package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a pool. Path is required.
type Config struct {
	// Path is the SQLite database file. Created if absent. Tests use
	// a file under t.TempDir(); ":memory:" does not work with a pool.
	Path string

	// PoolSize is the number of connections. Defaults to 4: SQLite
	// serializes writes regardless, and four readers cover the
	// conversation-listing fan-out comfortably.
	PoolSize int

	// Logger receives pool lifecycle messages. Nil means discard.
	Logger *slog.Logger

	// OnConnect runs once per connection after the standard pragmas.
	// Stores use it to apply their schema.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size pool of SQLite connections. Safe for concurrent
// use; the connections it hands out are not.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool and applies the house pragmas to every
// connection. Connections initialize lazily on first Take. The caller
// must Close the pool when done.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)

	return &Pool{inner: inner, logger: logger, path: cfg.Path}, nil
}

// Take borrows a connection. Blocks until one is available or ctx is
// cancelled. Pair every Take with a deferred Put.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Safe to call with nil.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close closes all connections. Blocks until borrowed connections are
// returned; Take fails afterwards.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close error", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

// prepareConnection applies the house pragmas, then the optional
// OnConnect hook. Runs once per pooled connection, on first use.
func prepareConnection(conn *sqlite.Conn, onConnect func(*sqlite.Conn) error) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}

	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}

	return nil
}
