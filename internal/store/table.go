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
)

// Table provides row operations on a single recoverable table. All
// statements address rows by the canonical key form, so replayed
// identifiers must pass through NormalizeKey first.
type Table struct {
	db   *DB
	name string
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Upsert writes doc under key, replacing any existing row. This is
// the INSERT semantics during replay: a redelivered insert must not
// fail or duplicate.
func (t *Table) Upsert(ctx context.Context, key, doc string) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (id, doc) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc",
		t.name)
	if _, err := t.db.connection().ExecContext(ctx, query, key, doc); err != nil {
		return fmt.Errorf("upsert into %s: %w", t.name, err)
	}
	return nil
}

// Update overwrites the row under key. Returns ErrNotFound when the
// row does not exist.
func (t *Table) Update(ctx context.Context, key, doc string) error {
	query := fmt.Sprintf("UPDATE %s SET doc = ? WHERE id = ?", t.name)
	res, err := t.db.connection().ExecContext(ctx, query, doc, key)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	return t.checkAffected(res, key)
}

// Delete removes the row under key. Returns ErrNotFound when the row
// does not exist.
func (t *Table) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.name)
	res, err := t.db.connection().ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", t.name, err)
	}
	return t.checkAffected(res, key)
}

// Get fetches the document under key. Returns ErrNotFound when absent.
func (t *Table) Get(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf("SELECT doc FROM %s WHERE id = ?", t.name)
	var doc string
	err := t.db.connection().QueryRowContext(ctx, query, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s[%s]: %w", t.name, key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get from %s: %w", t.name, err)
	}
	return doc, nil
}

// Count returns the number of rows in the table.
func (t *Table) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT count(*) FROM %s", t.name)
	var n int64
	if err := t.db.connection().QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// checkAffected maps a zero-row statement result to ErrNotFound.
func (t *Table) checkAffected(res sql.Result, key string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", t.name, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s[%s]: %w", t.name, key, ErrNotFound)
	}
	return nil
}
