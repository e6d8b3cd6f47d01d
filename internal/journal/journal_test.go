// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package journal

import (
	"errors"
	"testing"
	"time"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Options{Path: t.TempDir(), SyncWrites: false})
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAssignsID(t *testing.T) {
	j := newTestJournal(t)

	id, err := j.Append(&Record{Kind: KindRecovery, Outcome: "done"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if id == "" {
		t.Error("expected a generated record ID")
	}
}

func TestAppendNilRecord(t *testing.T) {
	j := newTestJournal(t)

	if _, err := j.Append(nil); !errors.Is(err, ErrNilRecord) {
		t.Errorf("expected ErrNilRecord, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	j := newTestJournal(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := j.Append(&Record{
			Kind:         KindRecovery,
			StartedAt:    base.Add(time.Duration(i) * time.Hour),
			Outcome:      "done",
			SnapshotName: string(rune('a' + i)),
		})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	records, err := j.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("listed %d records, want 3", len(records))
	}
	for i, want := range []string{"c", "b", "a"} {
		if records[i].SnapshotName != want {
			t.Errorf("position %d: snapshot = %q, want %q", i, records[i].SnapshotName, want)
		}
	}
}

func TestListLimit(t *testing.T) {
	j := newTestJournal(t)

	for i := 0; i < 5; i++ {
		if _, err := j.Append(&Record{Kind: KindCleanup, Outcome: "done"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := j.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("listed %d records, want 2", len(records))
	}

	count, err := j.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Count = %d, want 5", count)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	j := newTestJournal(t)

	in := &Record{
		Kind:         KindRecovery,
		StartedAt:    time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 8, 29, 10, 5, 0, 0, time.UTC),
		Outcome:      "fatal",
		FatalReason:  "no snapshot found",
		SnapshotName: "snap.duckdb",
		FilesApplied: 2,
		FilesTotal:   5,
		Applied:      120,
		Skipped:      3,
		ErrorCount:   1,
		Target:       "2026-08-28T00:00:00Z",
	}
	if _, err := j.Append(in); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records, err := j.List(1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("listed %d records, want 1", len(records))
	}

	got := records[0]
	if got.FatalReason != in.FatalReason || got.FilesApplied != in.FilesApplied ||
		got.Applied != in.Applied || got.Target != in.Target {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestClosedJournal(t *testing.T) {
	j := newTestJournal(t)
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := j.Append(&Record{}); !errors.Is(err, ErrJournalClosed) {
		t.Errorf("Append after close: expected ErrJournalClosed, got %v", err)
	}
	if _, err := j.List(1); !errors.Is(err, ErrJournalClosed) {
		t.Errorf("List after close: expected ErrJournalClosed, got %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("double Close should be nil, got %v", err)
	}
}
