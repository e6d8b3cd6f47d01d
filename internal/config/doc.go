// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

// Package config loads and validates Rewind configuration.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//
//   - Environment variables (STORE_DIR, DATABASE_PATH, RETENTION_DAYS, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// See Load for the full precedence rules and envTransformFunc for the
// environment variable naming scheme.
package config
