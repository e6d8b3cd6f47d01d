// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

// Package metrics defines Prometheus metrics for the recovery pipeline.
//
// Metrics are registered globally via promauto and recorded through small
// RecordX helper functions so callers never touch metric handles directly.
// Serve optionally exposes the standard /metrics endpoint during
// long-running operations.
package metrics
