// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tomtom215/rewind/internal/logging"
)

// BulkRestore replaces the entire database with the snapshot file at
// snapshotPath. The connection is closed, the database and WAL files
// are swapped out, and the connection reopened. The recovery set is
// re-verified on the restored file so replay can start immediately.
//
// On a copy failure the database is left closed rather than reopened
// over a half-written file; the caller must treat the error as fatal.
func (db *DB) BulkRestore(ctx context.Context, snapshotPath string) error {
	if _, err := os.Stat(snapshotPath); err != nil {
		return fmt.Errorf("snapshot file not usable: %w", err)
	}

	db.mu.Lock()
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			db.mu.Unlock()
			return fmt.Errorf("failed to close database before restore: %w", err)
		}
		db.conn = nil
	}
	db.mu.Unlock()

	removeIfExists(db.opts.Path)
	removeIfExists(db.opts.Path + ".wal")

	if err := copyFile(snapshotPath, db.opts.Path); err != nil {
		return fmt.Errorf("failed to install snapshot: %w", err)
	}

	if err := db.open(ctx); err != nil {
		return fmt.Errorf("failed to reopen restored database: %w", err)
	}

	// The snapshot should already carry the recovery tables; creating
	// missing ones keeps replay of a brand-new table from failing.
	for name := range db.tables {
		if err := db.ensureTable(ctx, name); err != nil {
			return err
		}
	}

	logging.Info().
		Str("snapshot", filepath.Base(snapshotPath)).
		Str("path", db.opts.Path).
		Msg("Database restored from snapshot")

	return nil
}

// removeIfExists deletes path, ignoring a missing file.
func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to remove existing file")
	}
}

// copyFile copies src to dst, syncing before close.
//
//nolint:gosec // G304: paths come from internal recovery staging
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
