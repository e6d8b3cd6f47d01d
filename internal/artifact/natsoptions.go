// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package artifact

import "errors"

// ErrNATSDisabled is returned when NATS storage is requested but the
// binary was built without the nats tag.
var ErrNATSDisabled = errors.New("NATS storage not available (build with -tags nats)")

// NATSOptions configures the JetStream-backed store.
type NATSOptions struct {
	// URL is the external NATS server URL. Ignored when EmbeddedServer is set.
	URL string
	// Bucket is the object store bucket holding the artifacts.
	Bucket string
	// EmbeddedServer starts an in-process NATS server instead of
	// connecting to URL.
	EmbeddedServer bool
	// StoreDir is the embedded server's JetStream storage directory.
	StoreDir string
	// MaxMemory caps embedded JetStream memory usage in bytes.
	MaxMemory int64
	// MaxStore caps embedded JetStream disk usage in bytes.
	MaxStore int64
}
