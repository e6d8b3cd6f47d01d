// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

// Package replay applies newline-delimited JSON change-log files to
// the relational store. Each line is handled independently: malformed
// lines, unknown tables and unrecognized operations are recorded as
// recoverable errors and never abort the file.
package replay
