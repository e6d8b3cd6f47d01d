// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package artifact

import (
	"sort"
	"strings"
	"time"
)

// IncrementalPrefix marks change-log artifacts. Every other artifact
// in the backup folder is treated as a full snapshot.
const IncrementalPrefix = "audit_"

// Artifact describes a single file in the backup store.
type Artifact struct {
	// ID is the backend-specific identifier used for download and delete.
	ID string
	// Name is the artifact filename as uploaded.
	Name string
	// CreatedAt is the upload timestamp reported by the backend.
	CreatedAt time.Time
	// SizeBytes is the artifact size as reported by the backend.
	SizeBytes int64
}

// IsIncremental reports whether the artifact is an incremental
// change log rather than a full snapshot.
func (a Artifact) IsIncremental() bool {
	return strings.HasPrefix(a.Name, IncrementalPrefix)
}

// SelectLatestSnapshot returns the snapshot artifact with the most
// recent CreatedAt. Incrementals are ignored. When two snapshots
// share a timestamp the lexicographically greatest name wins, so the
// choice is deterministic across runs. The second return value is
// false when the listing contains no snapshot at all.
func SelectLatestSnapshot(artifacts []Artifact) (Artifact, bool) {
	var best Artifact
	found := false

	for _, a := range artifacts {
		if a.IsIncremental() {
			continue
		}
		if !found {
			best = a
			found = true
			continue
		}
		if a.CreatedAt.After(best.CreatedAt) {
			best = a
			continue
		}
		if a.CreatedAt.Equal(best.CreatedAt) && a.Name > best.Name {
			best = a
		}
	}

	return best, found
}

// SelectIncrementalsSince returns the incremental artifacts created
// strictly after cutoff, sorted ascending by CreatedAt. An
// incremental stamped exactly at cutoff is excluded: the snapshot
// already contains its changes. Ties are ordered by name so replay
// order is stable.
func SelectIncrementalsSince(artifacts []Artifact, cutoff time.Time) []Artifact {
	selected := make([]Artifact, 0, len(artifacts))

	for _, a := range artifacts {
		if !a.IsIncremental() {
			continue
		}
		if !a.CreatedAt.After(cutoff) {
			continue
		}
		selected = append(selected, a)
	}

	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].CreatedAt.Equal(selected[j].CreatedAt) {
			return selected[i].CreatedAt.Before(selected[j].CreatedAt)
		}
		return selected[i].Name < selected[j].Name
	})

	return selected
}
