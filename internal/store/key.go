// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package store

import "strconv"

// NormalizeKey converts a raw row identifier into its canonical
// storage form. All-digit strings are parsed and reformatted so that
// "001" and "1" address the same row; anything else, including signed
// forms like "+7" and "-7", is stored verbatim. Values too large for
// int64 fall back to the raw string.
func NormalizeKey(raw string) string {
	if !allDigits(raw) {
		return raw
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	return strconv.FormatInt(n, 10)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
