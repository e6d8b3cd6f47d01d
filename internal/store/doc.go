// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

// Package store wraps the DuckDB database that recovery rebuilds.
// It exposes per-table row operations keyed by the canonical row
// identifier and a bulk restore path that replaces the database file
// with a downloaded snapshot.
package store
