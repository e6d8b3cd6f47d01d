// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T, tables ...string) *DB {
	t.Helper()
	db, err := New(context.Background(), Options{
		Path:      filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory: "256MB",
		Threads:   1,
	}, tables)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewRejectsBadTableName(t *testing.T) {
	_, err := New(context.Background(), Options{
		Path: filepath.Join(t.TempDir(), "test.duckdb"),
	}, []string{"items; DROP TABLE items"})
	if err == nil {
		t.Fatal("expected error for unsafe table name")
	}
}

func TestTableUnknown(t *testing.T) {
	db := newTestDB(t, "items")

	if _, err := db.Table("ghosts"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("expected ErrUnknownTable, got %v", err)
	}
}

func TestUpsertGetUpdateDelete(t *testing.T) {
	db := newTestDB(t, "items")
	ctx := context.Background()

	tbl, err := db.Table("items")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}

	if err := tbl.Upsert(ctx, "1", `{"name":"first"}`); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	doc, err := tbl.Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc != `{"name":"first"}` {
		t.Errorf("Get = %q", doc)
	}

	// Upsert over an existing key replaces, never duplicates.
	if err := tbl.Upsert(ctx, "1", `{"name":"second"}`); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	count, err := tbl.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d after duplicate upsert, want 1", count)
	}

	if err := tbl.Update(ctx, "1", `{"name":"third"}`); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	doc, err = tbl.Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if doc != `{"name":"third"}` {
		t.Errorf("Get after update = %q", doc)
	}

	if err := tbl.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := tbl.Get(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUpdateDeleteMissingRow(t *testing.T) {
	db := newTestDB(t, "items")
	ctx := context.Background()

	tbl, err := db.Table("items")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}

	if err := tbl.Update(ctx, "404", `{}`); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing: expected ErrNotFound, got %v", err)
	}
	if err := tbl.Delete(ctx, "404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing: expected ErrNotFound, got %v", err)
	}
}

func TestBulkRestoreReplacesState(t *testing.T) {
	ctx := context.Background()

	// Build a snapshot database holding one row.
	snapPath := filepath.Join(t.TempDir(), "snapshot.duckdb")
	snap, err := New(ctx, Options{Path: snapPath, MaxMemory: "256MB", Threads: 1}, []string{"items"})
	if err != nil {
		t.Fatalf("failed to create snapshot database: %v", err)
	}
	snapTbl, _ := snap.Table("items")
	if err := snapTbl.Upsert(ctx, "100", `{"origin":"snapshot"}`); err != nil {
		t.Fatalf("snapshot upsert failed: %v", err)
	}
	if err := snap.Close(); err != nil {
		t.Fatalf("failed to close snapshot database: %v", err)
	}

	// Live database has divergent state that must disappear.
	db := newTestDB(t, "items")
	tbl, _ := db.Table("items")
	if err := tbl.Upsert(ctx, "999", `{"origin":"stale"}`); err != nil {
		t.Fatalf("live upsert failed: %v", err)
	}

	if err := db.BulkRestore(ctx, snapPath); err != nil {
		t.Fatalf("BulkRestore failed: %v", err)
	}

	doc, err := tbl.Get(ctx, "100")
	if err != nil {
		t.Fatalf("snapshot row missing after restore: %v", err)
	}
	if doc != `{"origin":"snapshot"}` {
		t.Errorf("restored doc = %q", doc)
	}

	if _, err := tbl.Get(ctx, "999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale row survived restore: %v", err)
	}
}

func TestBulkRestoreMissingSnapshot(t *testing.T) {
	db := newTestDB(t, "items")

	err := db.BulkRestore(context.Background(), filepath.Join(t.TempDir(), "nope.duckdb"))
	if err == nil {
		t.Fatal("expected error for missing snapshot file")
	}
}
