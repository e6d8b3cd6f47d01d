// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

// Package recovery drives a full database recovery run: select the
// latest snapshot, bulk-restore it, then replay every newer
// incremental change log strictly in order. It also hosts the
// retention cleanup entry point, serialized against recovery so the
// two never race on the artifact store.
package recovery
