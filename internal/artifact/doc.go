// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

// Package artifact manages backup artifacts in remote storage:
// classification of snapshots and incremental change logs,
// selection of the recovery sequence, upload/download/delete
// operations against a pluggable store backend, and retention
// cleanup of expired artifacts.
package artifact
