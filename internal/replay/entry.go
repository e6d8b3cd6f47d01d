// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package replay

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Change-log operations.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Entry is one change-log record. Producers append one JSON object
// per line; Before is informational and not used during replay.
type Entry struct {
	EntryID   string          `json:"entryId"`
	Table     string          `json:"table"`
	RowID     RowID           `json:"rowId"`
	Op        string          `json:"operation"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// RowID accepts both JSON strings and bare numbers, since producers
// disagree on how they serialize identifiers.
type RowID string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RowID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*r = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*r = RowID(str)
		return nil
	}
	*r = RowID(s)
	return nil
}

// String returns the raw identifier.
func (r RowID) String() string {
	return string(r)
}

// parseEntry decodes and validates a single change-log line.
func parseEntry(line []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if e.Table == "" {
		return nil, fmt.Errorf("missing table")
	}
	if e.RowID == "" {
		return nil, fmt.Errorf("missing rowId")
	}
	if (e.Op == OpInsert || e.Op == OpUpdate) && len(e.After) == 0 {
		return nil, fmt.Errorf("%s entry missing after payload", e.Op)
	}
	return &e, nil
}
