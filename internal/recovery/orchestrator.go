// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomtom215/rewind/internal/artifact"
	"github.com/tomtom215/rewind/internal/journal"
	"github.com/tomtom215/rewind/internal/logging"
	"github.com/tomtom215/rewind/internal/metrics"
	"github.com/tomtom215/rewind/internal/replay"
	"github.com/tomtom215/rewind/internal/store"
)

// ErrNoSnapshot is the fatal condition when the store holds no full
// snapshot to restore from. Nothing is modified in that case.
var ErrNoSnapshot = errors.New("no snapshot artifact found")

// Result is the final report of a recovery run. It is produced even
// when the run aborts, so repeated invocation is the standard
// recovery path rather than a last resort.
type Result struct {
	SnapshotName      string
	SnapshotCreatedAt time.Time

	// FilesTotal is the number of incrementals selected for replay;
	// FilesApplied is how many completed before the run ended.
	FilesTotal   int
	FilesApplied int

	// Applied and Skipped aggregate per-entry counters across files.
	Applied int
	Skipped int

	// Errors aggregates recoverable per-line problems across files.
	Errors []replay.ReplayError

	// FatalReason is empty on DONE and holds the abort cause on FATAL.
	FatalReason string

	Duration time.Duration
}

// Fatal reports whether the run aborted.
func (r *Result) Fatal() bool {
	return r.FatalReason != ""
}

// Options wires an Orchestrator.
type Options struct {
	// Store is the artifact store client.
	Store artifact.Store
	// DB is the relational store being rebuilt.
	DB *store.DB
	// Journal records run history. Optional; appends are best-effort.
	Journal *journal.Journal
	// DownloadDir stages downloaded artifacts. Empty uses the system
	// temp directory.
	DownloadDir string
}

// Orchestrator runs recovery and retention cleanup. The two share a
// mutex so cleanup can never delete an artifact out from under a
// running recovery.
type Orchestrator struct {
	store       artifact.Store
	db          *store.DB
	journal     *journal.Journal
	engine      *replay.Engine
	downloadDir string

	runMu sync.Mutex
}

// New creates an Orchestrator over the given store and database.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:       opts.Store,
		db:          opts.DB,
		journal:     opts.Journal,
		downloadDir: opts.DownloadDir,
	}
	o.engine = replay.NewEngine(func(name string) (replay.TableWriter, error) {
		t, err := o.db.Table(name)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
	return o
}

// Run executes one recovery: restore the latest snapshot, then replay
// every incremental newer than it, one file at a time, strictly in
// order. target is operator intent recorded in logs and the journal;
// selection always uses the latest snapshot.
func (o *Orchestrator) Run(ctx context.Context, target string) *Result {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := time.Now()
	result := &Result{}

	logging.Info().Str("target", target).Msg("Recovery run starting")

	o.run(ctx, result)

	result.Duration = time.Since(start)
	o.finishRun(result, target, start)
	return result
}

// run walks the recovery state machine, stopping at the first fatal
// condition by setting result.FatalReason.
func (o *Orchestrator) run(ctx context.Context, result *Result) {
	artifacts, err := o.store.List(ctx)
	if err != nil {
		result.FatalReason = fmt.Sprintf("failed to list artifacts: %v", err)
		return
	}

	snap, found := artifact.SelectLatestSnapshot(artifacts)
	if !found {
		// Nothing has been modified at this point.
		result.FatalReason = ErrNoSnapshot.Error()
		return
	}
	result.SnapshotName = snap.Name
	result.SnapshotCreatedAt = snap.CreatedAt

	if err := o.restoreSnapshot(ctx, snap); err != nil {
		// The store may hold partial state now; operator intervention
		// is required either way.
		result.FatalReason = err.Error()
		return
	}

	incrementals := artifact.SelectIncrementalsSince(artifacts, snap.CreatedAt)
	result.FilesTotal = len(incrementals)

	if len(incrementals) == 0 {
		logging.Info().Msg("No incrementals newer than snapshot, replay skipped")
		return
	}

	// One file at a time: file N+1 may reference rows mutated in file
	// N, so replay is never parallelized.
	for _, inc := range incrementals {
		if err := o.replayIncremental(ctx, inc, result); err != nil {
			result.FatalReason = err.Error()
			return
		}
		result.FilesApplied++
	}
}

// replayIncremental downloads one change log and applies it. Partial
// per-file progress is folded into result even when the file fails.
func (o *Orchestrator) replayIncremental(ctx context.Context, inc artifact.Artifact, result *Result) error {
	stagingDir, err := o.stagingDir()
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(stagingDir) }()

	localPath := filepath.Join(stagingDir, inc.Name)
	if err := o.store.Download(ctx, inc.ID, localPath); err != nil {
		// Stop before applying this file; earlier files stay applied.
		return fmt.Errorf("download incremental %s: %w", inc.Name, err)
	}

	f, err := os.Open(localPath) //nolint:gosec // staged under our temp dir
	if err != nil {
		return fmt.Errorf("open incremental %s: %w", inc.Name, err)
	}
	defer func() { _ = f.Close() }()

	fileResult, err := o.engine.ApplyLog(ctx, f, inc.Name)
	if fileResult != nil {
		result.Applied += fileResult.Applied
		result.Skipped += fileResult.Skipped
		result.Errors = append(result.Errors, fileResult.Errors...)
	}
	if err != nil {
		return fmt.Errorf("replay incremental %s: %w", inc.Name, err)
	}
	return nil
}

// finishRun emits the final report, metrics and journal record.
func (o *Orchestrator) finishRun(result *Result, target string, start time.Time) {
	outcome := "done"
	if result.Fatal() {
		outcome = "fatal"
	}
	metrics.RecordRecoveryRun(outcome)
	metrics.RecordRecoveryDuration(result.Duration)

	evt := logging.Info()
	if result.Fatal() {
		evt = logging.Error()
	}
	evt.Str("outcome", outcome).
		Str("snapshot", result.SnapshotName).
		Int("files_applied", result.FilesApplied).
		Int("files_total", result.FilesTotal).
		Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Str("fatal_reason", result.FatalReason).
		Dur("duration", result.Duration).
		Msg("Recovery run finished")

	o.appendJournal(&journal.Record{
		Kind:         journal.KindRecovery,
		StartedAt:    start.UTC(),
		FinishedAt:   time.Now().UTC(),
		Outcome:      outcome,
		FatalReason:  result.FatalReason,
		SnapshotName: result.SnapshotName,
		FilesApplied: result.FilesApplied,
		FilesTotal:   result.FilesTotal,
		Applied:      result.Applied,
		Skipped:      result.Skipped,
		ErrorCount:   len(result.Errors),
		Target:       target,
	})
}

// Cleanup deletes expired artifacts under the shared run lock.
func (o *Orchestrator) Cleanup(ctx context.Context, policy artifact.CleanupPolicy) (*artifact.CleanupResult, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := time.Now()
	result, err := artifact.Cleanup(ctx, o.store, policy, time.Now().UTC())

	rec := &journal.Record{
		Kind:       journal.KindCleanup,
		StartedAt:  start.UTC(),
		FinishedAt: time.Now().UTC(),
		Outcome:    "done",
	}
	if err != nil {
		rec.Outcome = "fatal"
		rec.FatalReason = err.Error()
	} else {
		rec.DeletedCount = result.DeletedCount
		rec.FailedCount = len(result.Errors)
	}
	o.appendJournal(rec)

	return result, err
}

// appendJournal records a run, logging rather than failing on error.
func (o *Orchestrator) appendJournal(rec *journal.Record) {
	if o.journal == nil {
		return
	}
	if _, err := o.journal.Append(rec); err != nil {
		logging.Warn().Err(err).Msg("Failed to append journal record")
	}
}
