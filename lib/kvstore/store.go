// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schema is applied to every writable connection. The table is WITHOUT
// ROWID because (collection, key) is the only access path and the rows
// are small.
const schema = `
CREATE TABLE IF NOT EXISTS keyvalue (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	PRIMARY KEY (collection, key)
) WITHOUT ROWID;
`

// Config carries the settings for opening a Store.
type Config struct {
	// Path is the SQLite database file. Required. The file and its
	// WAL sidecar files are created on first open unless ReadOnly
	// is set.
	Path string

	// PoolSize is the maximum number of concurrent connections.
	// Defaults to 4. Use 1 for in-memory databases.
	PoolSize int

	// ReadOnly opens the database without write access. Write
	// returns an error, and the schema is assumed to exist already.
	// Inspection tools set this so they can never disturb the
	// owning process.
	ReadOnly bool

	// Logger receives open and close events plus connection
	// warnings. Defaults to a discard logger.
	Logger *slog.Logger
}

// Store is a pool of connections to one key-value database. Methods
// are safe for concurrent use.
type Store struct {
	pool     *sqlitex.Pool
	path     string
	readOnly bool
	logger   *slog.Logger

	// watchMu guards watchConn, a dedicated connection used only for
	// DataVersion. It must be separate from the pool: SQLite reports
	// data_version changes made by other connections, so polling from
	// a pooled connection would count this process's own writes.
	watchMu   sync.Mutex
	watchConn *sqlite.Conn

	// completionMu guards completionTail, the tail of the chain that
	// serializes OnCommit completions across transactions.
	completionMu   sync.Mutex
	completionTail chan struct{}
}

// Open opens the database at cfg.Path, creating it and its schema if
// needed. The caller must Close the returned Store.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("kvstore: Config.Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	options := sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, cfg.ReadOnly)
		},
	}
	if cfg.ReadOnly {
		options.Flags = sqlite.OpenReadOnly | sqlite.OpenWAL | sqlite.OpenURI | sqlite.OpenNoMutex
	}
	pool, err := sqlitex.NewPool(cfg.Path, options)
	if err != nil {
		return nil, fmt.Errorf("kvstore: opening %s: %w", cfg.Path, err)
	}

	store := &Store{
		pool:     pool,
		path:     cfg.Path,
		readOnly: cfg.ReadOnly,
		logger:   logger,
	}

	// Initialize one connection now. For writable stores this applies
	// the schema; for read-only stores it confirms the keyvalue table
	// exists, so a bad path fails at open instead of on first use.
	if err := store.verify(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("kvstore: opening %s: %w", cfg.Path, err)
	}

	logger.Info("key-value store open",
		"path", cfg.Path,
		"pool_size", poolSize,
		"read_only", cfg.ReadOnly)
	return store, nil
}

// prepareConnection applies standard pragmas, and the schema on
// writable connections. Runs once per pooled connection, on first use.
func prepareConnection(conn *sqlite.Conn, readOnly bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA cache_size=-8192",
		"PRAGMA temp_store=MEMORY",
	}
	if !readOnly {
		// journal_mode=WAL rewrites the database header, which a
		// read-only connection is not allowed to do.
		pragmas = append([]string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
		}, pragmas...)
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if readOnly {
		return nil
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// verify forces one connection through PrepareConn and checks that the
// keyvalue table is present.
func (s *Store) verify() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn,
		"SELECT 1 FROM sqlite_schema WHERE type = 'table' AND name = 'keyvalue'",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("keyvalue table missing")
	}
	return nil
}

// Read runs fn inside a deferred read transaction. Every get inside fn
// observes the same committed snapshot of the database. The
// transaction ends when fn returns; the ReadTx must not escape fn.
func (s *Store) Read(ctx context.Context, fn func(tx ReadTx) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kvstore: read: %w", err)
	}
	defer s.pool.Put(conn)
	return runRead(conn, fn)
}

func runRead(conn *sqlite.Conn, fn func(tx ReadTx) error) (err error) {
	endTransaction := sqlitex.Transaction(conn)
	defer endTransaction(&err)
	return fn(&readTx{conn: conn})
}

// Write runs fn inside an IMMEDIATE write transaction. If fn returns
// nil the transaction commits and any completions queued with
// [WriteTx.OnCommit] run asynchronously, in order, in one goroutine.
// Completion batches from different transactions never interleave and
// run in the order the transactions committed. If fn returns an error
// the transaction rolls back, the completions are dropped, and the
// error is returned unchanged. The WriteTx must not escape fn.
func (s *Store) Write(ctx context.Context, fn func(tx *WriteTx) error) error {
	if s.readOnly {
		return fmt.Errorf("kvstore: write: store %s is read-only", s.path)
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kvstore: write: %w", err)
	}
	defer s.pool.Put(conn)

	tx := &WriteTx{readTx: readTx{conn: conn}}
	committed, err := s.runWrite(conn, tx, fn)
	if committed != nil {
		committed <- err == nil
	}
	return err
}

// runWrite isolates the deferred transaction ending so fn's error
// reliably reaches endTransaction through the named return value.
// Queued completions reserve their slot in the completion chain while
// the transaction is still open: the database write lock is held until
// commit, so chain order is commit order.
func (s *Store) runWrite(conn *sqlite.Conn, tx *WriteTx, fn func(tx *WriteTx) error) (committed chan bool, err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: begin write: %w", err)
	}
	defer endTransaction(&err)
	if err = fn(tx); err != nil {
		return nil, err
	}
	if len(tx.completions) > 0 {
		committed = s.enqueueCompletions(tx.completions)
	}
	return committed, nil
}

// enqueueCompletions schedules completions on their own goroutine, to
// start once the caller signals the commit outcome. Each batch waits
// for the previous batch to finish first. A batch whose transaction
// failed to commit is skipped but still releases its chain slot.
func (s *Store) enqueueCompletions(completions []func()) chan bool {
	committed := make(chan bool, 1)
	s.completionMu.Lock()
	previous := s.completionTail
	done := make(chan struct{})
	s.completionTail = done
	s.completionMu.Unlock()
	go func() {
		defer close(done)
		if previous != nil {
			<-previous
		}
		if !<-committed {
			return
		}
		for _, completion := range completions {
			completion()
		}
	}()
	return committed
}

// DataVersion reports SQLite's data_version counter as seen by a
// dedicated watch connection. The value changes exactly when a
// different connection — including one owned by another process —
// commits a write to the database. Writes made through this Store
// also change it, since the pool's connections are distinct from the
// watch connection. The absolute value carries no meaning; only
// inequality with a previously observed value does.
func (s *Store) DataVersion() (int64, error) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchConn == nil {
		conn, err := sqlite.OpenConn(s.path, sqlite.OpenReadOnly|sqlite.OpenWAL|sqlite.OpenURI)
		if err != nil {
			return 0, fmt.Errorf("kvstore: opening watch connection: %w", err)
		}
		s.watchConn = conn
	}
	var version int64
	err := sqlitex.ExecuteTransient(s.watchConn, "PRAGMA data_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("kvstore: data_version: %w", err)
	}
	return version, nil
}

// Close releases the watch connection and the pool. Outstanding
// transactions must finish first.
func (s *Store) Close() error {
	s.watchMu.Lock()
	if s.watchConn != nil {
		if err := s.watchConn.Close(); err != nil {
			s.logger.Warn("closing watch connection", "path", s.path, "error", err)
		}
		s.watchConn = nil
	}
	s.watchMu.Unlock()

	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("kvstore: closing %s: %w", s.path, err)
	}
	s.logger.Info("key-value store closed", "path", s.path)
	return nil
}
