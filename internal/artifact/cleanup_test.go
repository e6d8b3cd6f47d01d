// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package artifact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockStore is a hand-written Store for cleanup and breaker tests.
type mockStore struct {
	mu        sync.Mutex
	artifacts []Artifact
	listErr   error
	deleteErr map[string]error
	deleted   []string
}

func (m *mockStore) List(_ context.Context) ([]Artifact, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.artifacts, nil
}

func (m *mockStore) Upload(_ context.Context, _, name string) (*UploadInfo, error) {
	return &UploadInfo{ID: name}, nil
}

func (m *mockStore) Download(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.deleteErr[id]; ok {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func TestCleanupDeletesOnlyExpired(t *testing.T) {
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	store := &mockStore{
		artifacts: []Artifact{
			{ID: "old.duckdb", Name: "old.duckdb", CreatedAt: now.AddDate(0, 0, -40)},
			{ID: "audit_old.jsonl", Name: "audit_old.jsonl", CreatedAt: now.AddDate(0, 0, -35)},
			{ID: "fresh.duckdb", Name: "fresh.duckdb", CreatedAt: now.AddDate(0, 0, -10)},
			{ID: "audit_fresh.jsonl", Name: "audit_fresh.jsonl", CreatedAt: now.AddDate(0, 0, -1)},
		},
	}

	result, err := Cleanup(context.Background(), store, CleanupPolicy{
		RetentionDays:      30,
		MaxParallelDeletes: 2,
	}, now)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	if result.DeletedCount != 2 {
		t.Errorf("DeletedCount = %d, want 2", result.DeletedCount)
	}
	want := []string{"audit_old.jsonl", "old.duckdb"}
	if len(result.DeletedNames) != 2 || result.DeletedNames[0] != want[0] || result.DeletedNames[1] != want[1] {
		t.Errorf("DeletedNames = %v, want %v", result.DeletedNames, want)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
}

func TestCleanupErrorIsolation(t *testing.T) {
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	boom := errors.New("backend unavailable")
	store := &mockStore{
		artifacts: []Artifact{
			{ID: "a.duckdb", Name: "a.duckdb", CreatedAt: now.AddDate(0, 0, -60)},
			{ID: "b.duckdb", Name: "b.duckdb", CreatedAt: now.AddDate(0, 0, -60)},
			{ID: "c.duckdb", Name: "c.duckdb", CreatedAt: now.AddDate(0, 0, -60)},
		},
		deleteErr: map[string]error{"b.duckdb": boom},
	}

	result, err := Cleanup(context.Background(), store, CleanupPolicy{
		RetentionDays:      30,
		MaxParallelDeletes: 1,
	}, now)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	if result.DeletedCount != 2 {
		t.Errorf("DeletedCount = %d, want 2", result.DeletedCount)
	}
	if len(result.Errors) != 1 || result.Errors[0].Name != "b.duckdb" {
		t.Fatalf("Errors = %v, want one failure for b.duckdb", result.Errors)
	}
	if !errors.Is(result.Errors[0].Err, boom) {
		t.Errorf("error cause lost: %v", result.Errors[0].Err)
	}
}

func TestCleanupListFailureIsFatal(t *testing.T) {
	store := &mockStore{listErr: errors.New("listing down")}

	_, err := Cleanup(context.Background(), store, CleanupPolicy{
		RetentionDays:      30,
		MaxParallelDeletes: 1,
	}, time.Now())
	if err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestCleanupDisabledPolicy(t *testing.T) {
	store := &mockStore{}

	if _, err := Cleanup(context.Background(), store, CleanupPolicy{RetentionDays: 0}, time.Now()); err == nil {
		t.Error("expected error for retention_days=0")
	}
}

func TestCleanupNothingExpired(t *testing.T) {
	now := time.Now().UTC()
	store := &mockStore{
		artifacts: []Artifact{
			{ID: "fresh.duckdb", Name: "fresh.duckdb", CreatedAt: now.AddDate(0, 0, -1)},
		},
	}

	result, err := Cleanup(context.Background(), store, CleanupPolicy{
		RetentionDays:      30,
		MaxParallelDeletes: 4,
	}, now)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if result.DeletedCount != 0 || len(result.DeletedNames) != 0 {
		t.Errorf("expected no deletions, got %+v", result)
	}
}
