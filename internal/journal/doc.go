// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

// Package journal persists a durable audit trail of recovery and
// cleanup runs in BadgerDB. Appends are best-effort from the
// orchestrator's point of view; the history subcommand reads them
// back newest-first.
package journal
