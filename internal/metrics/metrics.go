// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/rewind/internal/logging"
)

// Prometheus metrics for recovery and retention operations
var (
	// replayEntriesApplied counts change-log entries applied to the store.
	replayEntriesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_replay_entries_applied_total",
		Help: "Total number of change-log entries applied to the relational store",
	})

	// replayEntriesSkipped counts applied entries that had no effect.
	replayEntriesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_replay_entries_skipped_total",
		Help: "Total number of applied change-log entries with no effect (UPDATE or DELETE of an absent row)",
	})

	// replayErrors counts recoverable replay errors by kind.
	replayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewind_replay_errors_total",
		Help: "Total number of recoverable replay errors by kind",
	}, []string{"kind"})

	// replayFilesTotal counts fully replayed change-log files.
	replayFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_replay_files_total",
		Help: "Total number of change-log files fully replayed",
	})

	// snapshotRestoresTotal counts snapshot restore operations.
	snapshotRestoresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_snapshot_restores_total",
		Help: "Total number of snapshot restore operations",
	})

	// recoveryRunsTotal counts recovery runs by outcome (done, fatal).
	recoveryRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewind_recovery_runs_total",
		Help: "Total number of recovery runs by outcome",
	}, []string{"outcome"})

	// recoveryDuration measures end-to-end recovery run duration.
	recoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rewind_recovery_duration_seconds",
		Help:    "End-to-end recovery run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
	})

	// artifactsDeletedTotal counts artifacts deleted by retention cleanup.
	artifactsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_artifacts_deleted_total",
		Help: "Total number of artifacts deleted by retention cleanup",
	})

	// cleanupDeleteFailures counts failed artifact deletions during cleanup.
	cleanupDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_cleanup_delete_failures_total",
		Help: "Total number of failed artifact deletions during retention cleanup",
	})

	// storeBreakerOpens counts circuit breaker transitions to the open state.
	storeBreakerOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_store_breaker_opens_total",
		Help: "Total number of artifact store circuit breaker transitions to open",
	})

	// journalAppendsTotal counts recovery-run journal appends.
	journalAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_journal_appends_total",
		Help: "Total number of recovery-run journal appends",
	})
)

// RecordEntryApplied increments the applied entries counter.
func RecordEntryApplied() {
	replayEntriesApplied.Inc()
}

// RecordEntrySkipped increments the skipped entries counter.
func RecordEntrySkipped() {
	replayEntriesSkipped.Inc()
}

// RecordReplayError increments the recoverable error counter for the given kind.
// Kinds: parse, unknown_table, unknown_op.
func RecordReplayError(kind string) {
	replayErrors.WithLabelValues(kind).Inc()
}

// RecordFileReplayed increments the replayed files counter.
func RecordFileReplayed() {
	replayFilesTotal.Inc()
}

// RecordSnapshotRestore increments the snapshot restore counter.
func RecordSnapshotRestore() {
	snapshotRestoresTotal.Inc()
}

// RecordRecoveryRun increments the run counter for the given outcome.
// Outcomes: done, fatal.
func RecordRecoveryRun(outcome string) {
	recoveryRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordRecoveryDuration records an end-to-end recovery duration.
func RecordRecoveryDuration(d time.Duration) {
	recoveryDuration.Observe(d.Seconds())
}

// RecordArtifactDeleted increments the deleted artifacts counter.
func RecordArtifactDeleted() {
	artifactsDeletedTotal.Inc()
}

// RecordCleanupDeleteFailure increments the cleanup delete failure counter.
func RecordCleanupDeleteFailure() {
	cleanupDeleteFailures.Inc()
}

// RecordBreakerOpen increments the circuit breaker open counter.
func RecordBreakerOpen() {
	storeBreakerOpens.Inc()
}

// RecordJournalAppend increments the journal append counter.
func RecordJournalAppend() {
	journalAppendsTotal.Inc()
}

// Serve exposes /metrics on the given address in a background goroutine.
// An empty address disables the endpoint. The returned server can be shut
// down by the caller; errors other than http.ErrServerClosed are logged.
func Serve(listen string) *http.Server {
	if listen == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logging.Info().Str("listen", listen).Msg("Metrics endpoint started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error().Err(err).Msg("Metrics endpoint failed")
		}
	}()

	return srv
}
