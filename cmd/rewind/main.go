// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

// Package main is the Rewind command-line entry point.
//
// Rewind rebuilds a DuckDB database from backup artifacts: it
// restores the latest full snapshot and replays every newer
// incremental change log strictly in order.
//
// Subcommands:
//
//	rewind recover [-target RFC3339]   run a full recovery
//	rewind cleanup [-retention-days N] delete expired artifacts
//	rewind history [-limit N]          show journaled runs
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults.
//
// # Build Tags
//
//	go build -tags "nats" ./cmd/rewind   # Enable the NATS object store backend
//
// Exit code is 0 when a recovery reaches DONE and non-zero on any
// fatal condition, with the fatal reason printed to standard error.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/rewind/internal/artifact"
	"github.com/tomtom215/rewind/internal/config"
	"github.com/tomtom215/rewind/internal/journal"
	"github.com/tomtom215/rewind/internal/logging"
	"github.com/tomtom215/rewind/internal/metrics"
	"github.com/tomtom215/rewind/internal/recovery"
	"github.com/tomtom215/rewind/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch args[0] {
	case "recover":
		return runRecover(ctx, cfg, args[1:])
	case "cleanup":
		return runCleanup(ctx, cfg, args[1:])
	case "history":
		return runHistory(cfg, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: rewind <subcommand> [flags]

subcommands:
  recover  restore the latest snapshot and replay incremental change logs
  cleanup  delete artifacts older than the retention window
  history  show journaled recovery and cleanup runs`)
}

// runRecover executes a recovery run and reports the outcome.
func runRecover(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	target := fs.String("target", "", "operator-intended recovery point (RFC3339), recorded in logs and the journal; selection always uses the latest snapshot")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *target != "" {
		if _, err := time.Parse(time.RFC3339, *target); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -target %q: %v\n", *target, err)
			return 2
		}
	}

	components, err := setup(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		return 1
	}
	defer components.close()

	result := components.orchestrator.Run(ctx, *target)

	printRecoveryReport(result)
	if result.Fatal() {
		fmt.Fprintf(os.Stderr, "recovery failed: %s\n", result.FatalReason)
		return 1
	}
	return 0
}

// runCleanup deletes expired artifacts and reports what was removed.
func runCleanup(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	days := fs.Int("retention-days", cfg.Retention.Days, "delete artifacts older than this many days")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	components, err := setup(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		return 1
	}
	defer components.close()

	result, err := components.orchestrator.Cleanup(ctx, artifact.CleanupPolicy{
		RetentionDays:      *days,
		MaxParallelDeletes: cfg.Retention.MaxParallelDeletes,
		DeletesPerSecond:   cfg.Retention.DeletesPerSecond,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cleanup failed: %v\n", err)
		return 1
	}

	fmt.Printf("deleted %d artifact(s) in %s\n", result.DeletedCount, result.Duration.Round(time.Millisecond))
	for _, name := range result.DeletedNames {
		fmt.Printf("  deleted %s\n", name)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "  failed %s: %v\n", e.Name, e.Err)
	}
	if len(result.Errors) > 0 {
		return 1
	}
	return 0
}

// runHistory prints journaled runs, newest first.
func runHistory(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum number of runs to show (0 = all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !cfg.Journal.Enabled {
		fmt.Fprintln(os.Stderr, "journal is disabled (set JOURNAL_ENABLED=true)")
		return 1
	}

	j, err := journal.Open(journal.Options{
		Path:       cfg.Journal.Path,
		SyncWrites: cfg.Journal.SyncWrites,
		RecordTTL:  cfg.Journal.RecordTTL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
		return 1
	}
	defer func() { _ = j.Close() }()

	records, err := j.List(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read journal: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Println("no journaled runs")
		return 0
	}

	for _, rec := range records {
		printJournalRecord(rec)
	}
	return 0
}

// printRecoveryReport writes the final run report. The report is
// always produced, fatal or not.
func printRecoveryReport(result *recovery.Result) {
	outcome := "DONE"
	if result.Fatal() {
		outcome = "FATAL"
	}
	fmt.Printf("outcome:       %s\n", outcome)
	if result.SnapshotName != "" {
		fmt.Printf("snapshot:      %s (created %s)\n",
			result.SnapshotName, result.SnapshotCreatedAt.Format(time.RFC3339))
	}
	fmt.Printf("files applied: %d/%d\n", result.FilesApplied, result.FilesTotal)
	fmt.Printf("entries:       %d applied (%d with no effect)\n", result.Applied, result.Skipped)
	fmt.Printf("errors:        %d recoverable\n", len(result.Errors))
	for _, e := range result.Errors {
		fmt.Printf("  %s[%s]: %s\n", e.Table, e.RowID, e.Message)
	}
	fmt.Printf("duration:      %s\n", result.Duration.Round(time.Millisecond))
}

func printJournalRecord(rec *journal.Record) {
	switch rec.Kind {
	case journal.KindCleanup:
		fmt.Printf("%s  %-8s %-6s deleted=%d failed=%d\n",
			rec.StartedAt.Format(time.RFC3339), rec.Kind, rec.Outcome,
			rec.DeletedCount, rec.FailedCount)
	default:
		fmt.Printf("%s  %-8s %-6s snapshot=%s files=%d/%d applied=%d errors=%d\n",
			rec.StartedAt.Format(time.RFC3339), rec.Kind, rec.Outcome,
			rec.SnapshotName, rec.FilesApplied, rec.FilesTotal, rec.Applied, rec.ErrorCount)
	}
	if rec.FatalReason != "" {
		fmt.Printf("    fatal: %s\n", rec.FatalReason)
	}
}

// components holds everything a subcommand needs, with teardown.
type components struct {
	orchestrator *recovery.Orchestrator
	db           *store.DB
	journal      *journal.Journal
	natsStore    *artifact.NATSStore
	metricsSrv   interface{ Close() error }
}

// setup wires the artifact store, database, journal and metrics
// endpoint from configuration.
func setup(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{}

	backend, err := buildStore(ctx, cfg, c)
	if err != nil {
		return nil, err
	}

	var storeClient artifact.Store = backend
	if cfg.Store.Breaker.Enabled || cfg.Store.OpTimeout > 0 {
		opts := artifact.ResilientOptions{OpTimeout: cfg.Store.OpTimeout}
		if cfg.Store.Breaker.Enabled {
			opts.FailureThreshold = cfg.Store.Breaker.FailureThreshold
			opts.OpenTimeout = cfg.Store.Breaker.OpenTimeout
			opts.MaxRequests = cfg.Store.Breaker.MaxRequests
		}
		storeClient = artifact.NewResilientStore(backend, opts)
	}

	db, err := store.New(ctx, store.Options{
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	}, cfg.Recovery.Tables)
	if err != nil {
		c.close()
		return nil, err
	}
	c.db = db

	if cfg.Journal.Enabled {
		j, err := journal.Open(journal.Options{
			Path:       cfg.Journal.Path,
			SyncWrites: cfg.Journal.SyncWrites,
			RecordTTL:  cfg.Journal.RecordTTL,
		})
		if err != nil {
			c.close()
			return nil, err
		}
		c.journal = j
	}

	if srv := metrics.Serve(cfg.Metrics.Listen); srv != nil {
		c.metricsSrv = srv
	}

	c.orchestrator = recovery.New(recovery.Options{
		Store:       storeClient,
		DB:          db,
		Journal:     c.journal,
		DownloadDir: cfg.Recovery.DownloadDir,
	})
	return c, nil
}

// buildStore creates the configured artifact store backend.
func buildStore(ctx context.Context, cfg *config.Config, c *components) (artifact.Store, error) {
	switch cfg.Store.Backend {
	case "nats":
		ns, err := artifact.NewNATSStore(ctx, artifact.NATSOptions{
			URL:            cfg.NATS.URL,
			Bucket:         cfg.NATS.Bucket,
			EmbeddedServer: cfg.NATS.EmbeddedServer,
			StoreDir:       cfg.NATS.StoreDir,
			MaxMemory:      cfg.NATS.MaxMemory,
			MaxStore:       cfg.NATS.MaxStore,
		})
		if err != nil {
			return nil, err
		}
		c.natsStore = ns
		return ns, nil
	default:
		return artifact.NewFSStore(cfg.Store.Dir)
	}
}

func (c *components) close() {
	if c.metricsSrv != nil {
		if err := c.metricsSrv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing metrics endpoint")
		}
	}
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing journal")
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}
	if c.natsStore != nil {
		c.natsStore.Close()
	}
}
