// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

//go:build !nats

package artifact

import "context"

// NATSStore is a stub when built without the nats tag.
type NATSStore struct{}

// NewNATSStore reports that NATS support is not compiled in.
func NewNATSStore(_ context.Context, _ NATSOptions) (*NATSStore, error) {
	return nil, ErrNATSDisabled
}

// List implements Store.
func (s *NATSStore) List(_ context.Context) ([]Artifact, error) {
	return nil, ErrNATSDisabled
}

// Upload implements Store.
func (s *NATSStore) Upload(_ context.Context, _, _ string) (*UploadInfo, error) {
	return nil, ErrNATSDisabled
}

// Download implements Store.
func (s *NATSStore) Download(_ context.Context, _, _ string) error {
	return ErrNATSDisabled
}

// Delete implements Store.
func (s *NATSStore) Delete(_ context.Context, _ string) error {
	return ErrNATSDisabled
}

// Close is a no-op.
func (s *NATSStore) Close() {}
