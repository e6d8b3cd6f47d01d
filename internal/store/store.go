// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/rewind/internal/logging"
)

// ErrNotFound is returned when an update or delete targets a row that
// does not exist.
var ErrNotFound = errors.New("row not found")

// ErrUnknownTable is returned when an operation names a table that is
// not in the recovery set.
var ErrUnknownTable = errors.New("unknown table")

// identRe restricts table names to safe SQL identifiers. Table names
// are interpolated into DDL and DML, so anything else is rejected
// at registration time.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Options configures the DuckDB connection.
type Options struct {
	// Path is the database file path.
	Path string
	// MaxMemory caps DuckDB memory usage (e.g. "2GB").
	MaxMemory string
	// Threads is the DuckDB worker thread count. Zero means NumCPU.
	Threads int
}

// DB wraps the DuckDB connection and the set of recoverable tables.
// BulkRestore swaps the underlying file, so the connection handle is
// guarded for concurrent readers.
type DB struct {
	mu     sync.RWMutex
	conn   *sql.DB
	opts   Options
	tables map[string]*Table
}

// New opens (or creates) the database and ensures every recoverable
// table exists with the document schema.
func New(ctx context.Context, opts Options, tables []string) (*DB, error) {
	if opts.Path == "" {
		return nil, errors.New("database path is required")
	}
	for _, name := range tables {
		if !identRe.MatchString(name) {
			return nil, fmt.Errorf("invalid table name: %q", name)
		}
	}

	db := &DB{
		opts:   opts,
		tables: make(map[string]*Table, len(tables)),
	}

	if err := db.open(ctx); err != nil {
		return nil, err
	}

	for _, name := range tables {
		if err := db.ensureTable(ctx, name); err != nil {
			_ = db.Close()
			return nil, err
		}
		db.tables[name] = &Table{db: db, name: name}
	}

	logging.Info().
		Str("path", opts.Path).
		Int("tables", len(tables)).
		Msg("Database opened")

	return db, nil
}

// open establishes the DuckDB connection. Caller holds no locks.
func (db *DB) open(ctx context.Context) error {
	dbDir := filepath.Dir(db.opts.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	threads := db.opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := db.opts.MaxMemory
	if maxMemory == "" {
		maxMemory = "2GB"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		db.opts.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	db.mu.Lock()
	db.conn = conn
	db.mu.Unlock()
	return nil
}

// ensureTable creates the document table if it does not exist. Rows
// hold the full record as JSON keyed by the canonical row identifier.
func (db *DB) ensureTable(ctx context.Context, name string) error {
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id VARCHAR PRIMARY KEY, doc JSON)", name)
	if _, err := db.connection().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return nil
}

// connection returns the current handle under the read lock.
func (db *DB) connection() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn
}

// Table returns the handle for a recoverable table, or ErrUnknownTable.
func (db *DB) Table(name string) (*Table, error) {
	t, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", name, ErrUnknownTable)
	}
	return t, nil
}

// TableNames returns the recovery set. Order is unspecified.
func (db *DB) TableNames() []string {
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	return names
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.opts.Path
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.connection().PingContext(ctx)
}

// Close releases the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}
