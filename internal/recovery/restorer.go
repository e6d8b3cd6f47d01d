// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package recovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/rewind/internal/artifact"
	"github.com/tomtom215/rewind/internal/logging"
	"github.com/tomtom215/rewind/internal/metrics"
)

// RestoreError marks a failed snapshot restore. After a restore
// failure the store is in an undefined state and the run is fatal.
type RestoreError struct {
	Snapshot string
	Err      error
}

// Error implements the error interface.
func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore snapshot %s: %v", e.Snapshot, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *RestoreError) Unwrap() error {
	return e.Err
}

// restoreSnapshot downloads the snapshot into the staging directory
// and replaces the database with it. Always the first mutating step
// of a run; partial success is not modeled.
func (o *Orchestrator) restoreSnapshot(ctx context.Context, snap artifact.Artifact) error {
	stagingDir, err := o.stagingDir()
	if err != nil {
		return &RestoreError{Snapshot: snap.Name, Err: err}
	}
	defer func() { _ = os.RemoveAll(stagingDir) }()

	localPath := filepath.Join(stagingDir, snap.Name)
	if err := o.store.Download(ctx, snap.ID, localPath); err != nil {
		return &RestoreError{Snapshot: snap.Name, Err: err}
	}

	if err := o.db.BulkRestore(ctx, localPath); err != nil {
		return &RestoreError{Snapshot: snap.Name, Err: err}
	}

	metrics.RecordSnapshotRestore()
	logging.Info().
		Str("snapshot", snap.Name).
		Time("created_at", snap.CreatedAt).
		Msg("Snapshot restored")

	return nil
}

// stagingDir creates a fresh staging directory for downloads.
func (o *Orchestrator) stagingDir() (string, error) {
	parent := o.downloadDir
	if parent != "" {
		if err := os.MkdirAll(parent, 0o750); err != nil {
			return "", fmt.Errorf("failed to create download directory: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, "rewind-staging-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, nil
}
