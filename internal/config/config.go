// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config is the root configuration for Rewind.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Database  DatabaseConfig  `koanf:"database"`
	Recovery  RecoveryConfig  `koanf:"recovery"`
	Retention RetentionConfig `koanf:"retention"`
	Journal   JournalConfig   `koanf:"journal"`
	NATS      NATSConfig      `koanf:"nats"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// StoreConfig configures the artifact store client.
type StoreConfig struct {
	// Backend selects the artifact store implementation: "fs" or "nats".
	// The "nats" backend requires a binary built with the nats tag.
	Backend string `koanf:"backend"`

	// Dir is the backup folder for the filesystem backend.
	Dir string `koanf:"dir"`

	// OpTimeout bounds each individual store call (list, download, delete).
	OpTimeout time.Duration `koanf:"op_timeout"`

	// Breaker configures the circuit breaker wrapped around store calls.
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker for artifact store calls.
type BreakerConfig struct {
	// Enabled turns the circuit breaker on.
	Enabled bool `koanf:"enabled"`

	// FailureThreshold is the number of consecutive failures before the
	// breaker opens.
	FailureThreshold uint32 `koanf:"failure_threshold"`

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `koanf:"open_timeout"`

	// MaxRequests is the number of probe requests allowed in half-open state.
	MaxRequests uint32 `koanf:"max_requests"`
}

// DatabaseConfig configures the DuckDB relational store.
type DatabaseConfig struct {
	// Path is the DuckDB database file location.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count (0 = runtime.NumCPU()).
	Threads int `koanf:"threads"`
}

// RecoveryConfig configures the recovery orchestrator.
type RecoveryConfig struct {
	// Tables lists the relational entities change-log entries may target.
	// The table registry is built once at startup from this list; entries
	// referencing any other table are recorded as recoverable errors.
	Tables []string `koanf:"tables"`

	// DownloadDir is where snapshot and change-log artifacts are staged
	// before being applied. Empty means a per-run temporary directory.
	DownloadDir string `koanf:"download_dir"`
}

// RetentionConfig configures retention-based artifact cleanup.
type RetentionConfig struct {
	// Days is the retention window; artifacts older than now-Days are deleted.
	Days int `koanf:"days"`

	// MaxParallelDeletes bounds concurrent delete calls during cleanup.
	MaxParallelDeletes int `koanf:"max_parallel_deletes"`

	// DeletesPerSecond throttles delete calls (0 = unlimited).
	DeletesPerSecond float64 `koanf:"deletes_per_second"`
}

// JournalConfig configures the durable recovery-run journal.
type JournalConfig struct {
	// Enabled turns run journaling on.
	Enabled bool `koanf:"enabled"`

	// Path is the BadgerDB directory for journal records.
	Path string `koanf:"path"`

	// SyncWrites forces fsync on every journal write.
	SyncWrites bool `koanf:"sync_writes"`

	// RecordTTL expires journal records after this duration (0 = keep forever).
	RecordTTL time.Duration `koanf:"record_ttl"`
}

// NATSConfig configures the NATS JetStream artifact store backend.
type NATSConfig struct {
	// URL is the NATS server URL when EmbeddedServer is false.
	URL string `koanf:"url"`

	// Bucket is the JetStream Object Store bucket holding backup artifacts.
	Bucket string `koanf:"bucket"`

	// EmbeddedServer runs an in-process NATS server instead of connecting
	// to an external one.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory for the embedded server.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory is the JetStream memory limit for the embedded server.
	MaxMemory int64 `koanf:"max_memory"`

	// MaxStore is the JetStream disk limit for the embedded server.
	MaxStore int64 `koanf:"max_store"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for the /metrics endpoint during long-running
	// operations (e.g. "127.0.0.1:9099"). Empty disables the endpoint.
	Listen string `koanf:"listen"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   "fs",
			Dir:       "/data/backups",
			OpTimeout: 2 * time.Minute,
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
				MaxRequests:      1,
			},
		},
		Database: DatabaseConfig{
			Path:      "/data/rewind.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Recovery: RecoveryConfig{
			Tables:      []string{},
			DownloadDir: "",
		},
		Retention: RetentionConfig{
			Days:               30,
			MaxParallelDeletes: 4,
			DeletesPerSecond:   0, // Unlimited
		},
		Journal: JournalConfig{
			Enabled:    true,
			Path:       "/data/journal",
			SyncWrites: true,
			RecordTTL:  0, // Keep forever
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			Bucket:         "backups",
			EmbeddedServer: false,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
		},
		Metrics: MetricsConfig{
			Listen: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks that the configuration is internally consistent.
//
//nolint:gocyclo // Validation function with many sequential checks
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "fs", "nats":
	default:
		return fmt.Errorf("store.backend must be one of: fs, nats (got %q)", c.Store.Backend)
	}

	if c.Store.Backend == "fs" {
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the fs backend")
		}
		if !filepath.IsAbs(c.Store.Dir) {
			return fmt.Errorf("store.dir must be an absolute path, got: %s", c.Store.Dir)
		}
	}

	if c.Store.OpTimeout < 0 {
		return fmt.Errorf("store.op_timeout must not be negative, got: %s", c.Store.OpTimeout)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Retention.Days < 1 {
		return fmt.Errorf("retention.days must be at least 1, got: %d", c.Retention.Days)
	}
	if c.Retention.MaxParallelDeletes < 1 {
		return fmt.Errorf("retention.max_parallel_deletes must be at least 1, got: %d", c.Retention.MaxParallelDeletes)
	}
	if c.Retention.DeletesPerSecond < 0 {
		return fmt.Errorf("retention.deletes_per_second must not be negative, got: %f", c.Retention.DeletesPerSecond)
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}

	if c.Store.Backend == "nats" {
		if c.NATS.Bucket == "" {
			return fmt.Errorf("nats.bucket is required for the nats backend")
		}
		if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
			return fmt.Errorf("nats.url is required when embedded_server is disabled")
		}
	}

	return nil
}
