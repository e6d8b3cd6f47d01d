// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/rewind/internal/artifact"
	"github.com/tomtom215/rewind/internal/store"
)

// buildSnapshot creates a DuckDB file holding the given items rows
// and returns its path.
func buildSnapshot(t *testing.T, rows map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.duckdb")
	db, err := store.New(context.Background(), store.Options{
		Path: path, MaxMemory: "256MB", Threads: 1,
	}, []string{"items"})
	if err != nil {
		t.Fatalf("failed to build snapshot database: %v", err)
	}
	tbl, err := db.Table("items")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	for key, doc := range rows {
		if err := tbl.Upsert(context.Background(), key, doc); err != nil {
			t.Fatalf("snapshot upsert failed: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close snapshot database: %v", err)
	}
	return path
}

// testEnv holds a wired orchestrator over a filesystem store and a
// live DuckDB database.
type testEnv struct {
	storeDir string
	fs       *artifact.FSStore
	db       *store.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	storeDir := t.TempDir()
	fs, err := artifact.NewFSStore(storeDir)
	if err != nil {
		t.Fatalf("failed to create FS store: %v", err)
	}
	db, err := store.New(context.Background(), store.Options{
		Path:      filepath.Join(t.TempDir(), "live.duckdb"),
		MaxMemory: "256MB",
		Threads:   1,
	}, []string{"items"})
	if err != nil {
		t.Fatalf("failed to open live database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &testEnv{storeDir: storeDir, fs: fs, db: db}
}

// putArtifact places a file in the store directory with a fixed
// creation time.
func (e *testEnv) putArtifact(t *testing.T, name string, content []byte, createdAt time.Time) {
	t.Helper()
	path := filepath.Join(e.storeDir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to place artifact %s: %v", name, err)
	}
	if err := os.Chtimes(path, createdAt, createdAt); err != nil {
		t.Fatalf("failed to set artifact time: %v", err)
	}
}

func (e *testEnv) putFile(t *testing.T, name, srcPath string, createdAt time.Time) {
	t.Helper()
	data, err := os.ReadFile(srcPath) //nolint:gosec
	if err != nil {
		t.Fatalf("failed to read %s: %v", srcPath, err)
	}
	e.putArtifact(t, name, data, createdAt)
}

func (e *testEnv) orchestrator(s artifact.Store) *Orchestrator {
	if s == nil {
		s = e.fs
	}
	return New(Options{Store: s, DB: e.db})
}

func (e *testEnv) getItem(t *testing.T, key string) (string, error) {
	t.Helper()
	tbl, err := e.db.Table("items")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	return tbl.Get(context.Background(), key)
}

func TestRunNoSnapshotModifiesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.putArtifact(t, "audit_only.jsonl",
		[]byte(`{"entryId":"1","table":"items","rowId":"1","operation":"DELETE"}`), time.Now())

	// Pre-existing state must survive an aborted run.
	tbl, _ := env.db.Table("items")
	if err := tbl.Upsert(context.Background(), "1", `{"name":"keep"}`); err != nil {
		t.Fatalf("setup upsert failed: %v", err)
	}

	result := env.orchestrator(nil).Run(context.Background(), "")

	if !result.Fatal() {
		t.Fatal("expected fatal result with no snapshot")
	}
	if !strings.Contains(result.FatalReason, "no snapshot") {
		t.Errorf("FatalReason = %q", result.FatalReason)
	}
	doc, err := env.getItem(t, "1")
	if err != nil || doc != `{"name":"keep"}` {
		t.Errorf("pre-existing row was modified: doc=%q err=%v", doc, err)
	}
}

func TestRunSnapshotOnly(t *testing.T) {
	env := newTestEnv(t)
	snapPath := buildSnapshot(t, map[string]string{"1": `{"name":"A"}`})
	env.putFile(t, "weekly.duckdb", snapPath, time.Now().Add(-time.Hour))

	result := env.orchestrator(nil).Run(context.Background(), "")

	if result.Fatal() {
		t.Fatalf("unexpected fatal: %s", result.FatalReason)
	}
	if result.SnapshotName != "weekly.duckdb" {
		t.Errorf("SnapshotName = %q", result.SnapshotName)
	}
	if result.FilesTotal != 0 || result.Applied != 0 {
		t.Errorf("expected replay skipped, got %+v", result)
	}
	doc, err := env.getItem(t, "1")
	if err != nil || doc != `{"name":"A"}` {
		t.Errorf("row after restore: doc=%q err=%v", doc, err)
	}
}

func TestRunEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	t0 := time.Now().Add(-2 * time.Hour)
	t1 := t0.Add(time.Hour)

	snapPath := buildSnapshot(t, map[string]string{"1": `{"name":"A"}`})
	env.putFile(t, "weekly.duckdb", snapPath, t0)
	env.putArtifact(t, "audit_1.jsonl",
		[]byte(`{"entryId":"1","table":"items","rowId":"1","operation":"UPDATE","after":{"name":"B"}}`), t1)

	result := env.orchestrator(nil).Run(context.Background(), "")

	if result.Fatal() {
		t.Fatalf("unexpected fatal: %s", result.FatalReason)
	}
	if result.Applied != 1 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, want applied=1 errors=0", result)
	}
	if result.FilesApplied != 1 || result.FilesTotal != 1 {
		t.Errorf("files = %d/%d, want 1/1", result.FilesApplied, result.FilesTotal)
	}
	doc, err := env.getItem(t, "1")
	if err != nil || doc != `{"name":"B"}` {
		t.Errorf("final row: doc=%q err=%v", doc, err)
	}
}

// faultStore fails downloads of one artifact.
type faultStore struct {
	artifact.Store
	failID string
}

func (f *faultStore) Download(ctx context.Context, id, destPath string) error {
	if id == f.failID {
		return errors.New("simulated download failure")
	}
	return f.Store.Download(ctx, id, destPath)
}

func TestRunStopsBeforeFailedDownload(t *testing.T) {
	env := newTestEnv(t)
	t0 := time.Now().Add(-3 * time.Hour)

	snapPath := buildSnapshot(t, nil)
	env.putFile(t, "weekly.duckdb", snapPath, t0)
	env.putArtifact(t, "audit_1.jsonl",
		[]byte(`{"entryId":"1","table":"items","rowId":"1","operation":"INSERT","after":{"name":"A"}}`),
		t0.Add(time.Hour))
	env.putArtifact(t, "audit_2.jsonl",
		[]byte(`{"entryId":"2","table":"items","rowId":"2","operation":"INSERT","after":{"name":"B"}}`),
		t0.Add(2*time.Hour))

	o := env.orchestrator(&faultStore{Store: env.fs, failID: "audit_2.jsonl"})
	result := o.Run(context.Background(), "")

	if !result.Fatal() {
		t.Fatal("expected fatal result")
	}
	if result.FilesApplied != 1 || result.FilesTotal != 2 {
		t.Errorf("files = %d/%d, want 1/2", result.FilesApplied, result.FilesTotal)
	}
	// Progress from the completed file is preserved in the report and
	// in the store.
	if result.Applied != 1 {
		t.Errorf("Applied = %d, want 1", result.Applied)
	}
	if _, err := env.getItem(t, "1"); err != nil {
		t.Errorf("row from applied file missing: %v", err)
	}
	if _, err := env.getItem(t, "2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("row from failed file must not exist: %v", err)
	}
}

func TestRunOrderSensitivity(t *testing.T) {
	insertThenUpdate := []byte(
		`{"entryId":"1","table":"items","rowId":"1","operation":"INSERT","after":{"name":"A"}}` + "\n" +
			`{"entryId":"2","table":"items","rowId":"1","operation":"UPDATE","after":{"name":"B"}}`)
	deleteRow := []byte(`{"entryId":"3","table":"items","rowId":"1","operation":"DELETE"}`)

	run := func(t *testing.T, firstFile, secondFile []byte) *testEnv {
		env := newTestEnv(t)
		t0 := time.Now().Add(-3 * time.Hour)
		env.putFile(t, "weekly.duckdb", buildSnapshot(t, nil), t0)
		env.putArtifact(t, "audit_first.jsonl", firstFile, t0.Add(time.Hour))
		env.putArtifact(t, "audit_second.jsonl", secondFile, t0.Add(2*time.Hour))

		result := env.orchestrator(nil).Run(context.Background(), "")
		if result.Fatal() {
			t.Fatalf("unexpected fatal: %s", result.FatalReason)
		}
		return env
	}

	// Chronological order: insert+update, then delete. Row ends absent.
	env := run(t, insertThenUpdate, deleteRow)
	if _, err := env.getItem(t, "1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("chronological order: row should be absent, got %v", err)
	}

	// Reversed file contents: delete first (swallowed), then
	// insert+update. The row survives, so ordering is load-bearing.
	env = run(t, deleteRow, insertThenUpdate)
	doc, err := env.getItem(t, "1")
	if err != nil || doc != `{"name":"B"}` {
		t.Errorf("reversed order: expected row with B, got doc=%q err=%v", doc, err)
	}
}

func TestCleanupThroughOrchestrator(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.putArtifact(t, "audit_old.jsonl", []byte("{}"), now.AddDate(0, 0, -40))
	env.putArtifact(t, "audit_new.jsonl", []byte("{}"), now.AddDate(0, 0, -10))

	result, err := env.orchestrator(nil).Cleanup(context.Background(), artifact.CleanupPolicy{
		RetentionDays:      30,
		MaxParallelDeletes: 2,
	})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if result.DeletedCount != 1 || len(result.DeletedNames) != 1 || result.DeletedNames[0] != "audit_old.jsonl" {
		t.Errorf("cleanup result = %+v, want only audit_old.jsonl deleted", result)
	}
}
