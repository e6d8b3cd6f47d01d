// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrArtifactNotFound is returned when a download or delete targets
// an artifact that no longer exists in the store.
var ErrArtifactNotFound = errors.New("artifact not found")

// UploadInfo describes an artifact after a successful upload.
type UploadInfo struct {
	// ID is the backend identifier assigned to the uploaded artifact.
	ID string
	// Location is a human-readable reference to the stored artifact.
	Location string
	// ContentHash is the hex-encoded SHA-256 of the uploaded bytes.
	ContentHash string
}

// Store is the remote artifact storage abstraction. Implementations
// must be safe for concurrent use.
type Store interface {
	// List returns every artifact in the backup folder.
	List(ctx context.Context) ([]Artifact, error)
	// Upload stores the file at localPath under the given artifact name.
	Upload(ctx context.Context, localPath, name string) (*UploadInfo, error)
	// Download copies the artifact with the given ID to destPath.
	Download(ctx context.Context, id, destPath string) error
	// Delete removes the artifact with the given ID.
	Delete(ctx context.Context, id string) error
}

// FSStore is a filesystem-backed Store rooted at a single directory.
// Artifact IDs are filenames.
type FSStore struct {
	dir string
}

// NewFSStore creates the backing directory if needed and returns a
// store over it.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// List returns the regular files in the store directory.
func (s *FSStore) List(ctx context.Context) ([]Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat artifact %s: %w", entry.Name(), err)
		}
		artifacts = append(artifacts, Artifact{
			ID:        entry.Name(),
			Name:      entry.Name(),
			CreatedAt: info.ModTime().UTC(),
			SizeBytes: info.Size(),
		})
	}

	return artifacts, nil
}

// Upload copies localPath into the store directory under name.
func (s *FSStore) Upload(ctx context.Context, localPath, name string) (*UploadInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid artifact name: %q", name)
	}

	destPath := filepath.Join(s.dir, name)
	hash, err := copyFileWithHash(localPath, destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to upload artifact %s: %w", name, err)
	}

	return &UploadInfo{
		ID:          name,
		Location:    destPath,
		ContentHash: hash,
	}, nil
}

// Download copies the stored artifact to destPath.
func (s *FSStore) Download(ctx context.Context, id, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" || id != filepath.Base(id) {
		return fmt.Errorf("invalid artifact id: %q", id)
	}

	srcPath := filepath.Join(s.dir, id)
	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return fmt.Errorf("artifact %s: %w", id, ErrArtifactNotFound)
	}

	if _, err := copyFileWithHash(srcPath, destPath); err != nil {
		return fmt.Errorf("failed to download artifact %s: %w", id, err)
	}
	return nil
}

// Delete removes the stored artifact.
func (s *FSStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" || id != filepath.Base(id) {
		return fmt.Errorf("invalid artifact id: %q", id)
	}

	err := os.Remove(filepath.Join(s.dir, id))
	if os.IsNotExist(err) {
		return fmt.Errorf("artifact %s: %w", id, ErrArtifactNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", id, err)
	}
	return nil
}

// copyFileWithHash copies src to dst and returns the hex SHA-256 of
// the copied bytes. The destination is created with restrictive
// permissions and synced before close.
func copyFileWithHash(src, dst string) (string, error) {
	in, err := os.Open(src) //nolint:gosec // paths are operator-controlled
	if err != nil {
		return "", fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec
	if err != nil {
		return "", fmt.Errorf("failed to create destination: %w", err)
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to copy data: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close destination: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
