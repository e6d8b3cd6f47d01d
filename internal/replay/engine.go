// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/rewind/internal/logging"
	"github.com/tomtom215/rewind/internal/metrics"
	"github.com/tomtom215/rewind/internal/store"
)

// maxLineBytes bounds a single change-log line. Full row payloads are
// small; anything past this is a corrupt file, not a real record.
const maxLineBytes = 16 * 1024 * 1024

// TableWriter is the row mutation surface the engine dispatches to.
// *store.Table satisfies it.
type TableWriter interface {
	Upsert(ctx context.Context, key, doc string) error
	Update(ctx context.Context, key, doc string) error
	Delete(ctx context.Context, key string) error
}

// TableResolver maps a change-log table name to its writer. Built
// once at startup from the configured recovery set; an error means
// the table is not recoverable.
type TableResolver func(name string) (TableWriter, error)

// ReplayError is one recoverable problem encountered during replay.
type ReplayError struct {
	Table   string
	RowID   string
	Message string
}

// FileResult summarizes the replay of a single change-log file.
type FileResult struct {
	// Applied counts entries that reached dispatch without a parse or
	// resolution error, including mutations swallowed as no-ops.
	Applied int
	// Skipped counts the subset of Applied where the target row was
	// already absent on UPDATE or DELETE.
	Skipped int
	// Errors lists recoverable problems. They never stop the file.
	Errors []ReplayError
}

// Engine replays change-log files against the relational store.
type Engine struct {
	resolve TableResolver
}

// NewEngine creates a replay engine over the given table resolver.
func NewEngine(resolve TableResolver) *Engine {
	return &Engine{resolve: resolve}
}

// ApplyLog replays one newline-delimited JSON change-log stream.
// Every line is independent: recoverable problems are recorded in the
// result and replay continues. The returned error is reserved for
// conditions outside line scope, a broken reader or a store-level
// failure, which the caller must treat as fatal.
func (e *Engine) ApplyLog(ctx context.Context, r io.Reader, name string) (*FileResult, error) {
	result := &FileResult{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		lineNo++

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if err := e.applyLine(ctx, line, lineNo, name, result); err != nil {
			return result, err
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read change log %s: %w", name, err)
	}

	metrics.RecordFileReplayed()
	logging.Info().
		Str("file", name).
		Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("Change log replayed")

	return result, nil
}

// applyLine handles a single change-log line. A non-nil return is a
// store-level failure; recoverable problems are absorbed into result.
func (e *Engine) applyLine(ctx context.Context, line []byte, lineNo int, file string, result *FileResult) error {
	entry, err := parseEntry(line)
	if err != nil {
		e.recordError(result, "unknown", "", fmt.Sprintf("line %d: %v", lineNo, err), "parse")
		return nil
	}

	writer, err := e.resolve(entry.Table)
	if err != nil {
		e.recordError(result, entry.Table, entry.RowID.String(),
			fmt.Sprintf("line %d: unknown table", lineNo), "unknown_table")
		return nil
	}

	key := store.NormalizeKey(entry.RowID.String())

	switch entry.Op {
	case OpInsert:
		// Upsert keeps re-runs of a partially applied recovery from
		// failing on rows that already exist.
		if err := writer.Upsert(ctx, key, string(entry.After)); err != nil {
			return fmt.Errorf("replay %s line %d: %w", file, lineNo, err)
		}
		result.Applied++
		metrics.RecordEntryApplied()

	case OpUpdate:
		err := writer.Update(ctx, key, string(entry.After))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("replay %s line %d: %w", file, lineNo, err)
		}
		if errors.Is(err, store.ErrNotFound) {
			// Absence is an expected steady-state outcome here, not
			// corruption. Applied with no effect.
			result.Skipped++
			metrics.RecordEntrySkipped()
		}
		result.Applied++
		metrics.RecordEntryApplied()

	case OpDelete:
		err := writer.Delete(ctx, key)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("replay %s line %d: %w", file, lineNo, err)
		}
		if errors.Is(err, store.ErrNotFound) {
			result.Skipped++
			metrics.RecordEntrySkipped()
		}
		result.Applied++
		metrics.RecordEntryApplied()

	default:
		e.recordError(result, entry.Table, entry.RowID.String(),
			fmt.Sprintf("line %d: unrecognized operation %q", lineNo, entry.Op), "unknown_op")
	}

	return nil
}

// recordError appends a recoverable error and updates metrics.
func (e *Engine) recordError(result *FileResult, table, rowID, message, kind string) {
	result.Errors = append(result.Errors, ReplayError{
		Table:   table,
		RowID:   rowID,
		Message: message,
	})
	metrics.RecordReplayError(kind)
	logging.Warn().
		Str("table", table).
		Str("row_id", rowID).
		Str("kind", kind).
		Msg(message)
}
