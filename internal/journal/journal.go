// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package journal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/rewind/internal/logging"
	"github.com/tomtom215/rewind/internal/metrics"
)

var (
	// ErrJournalClosed is returned for operations after Close.
	ErrJournalClosed = errors.New("journal is closed")
	// ErrNilRecord is returned when Append receives a nil record.
	ErrNilRecord = errors.New("nil journal record")
)

// Run kinds.
const (
	KindRecovery = "recovery"
	KindCleanup  = "cleanup"
)

// keyPrefix namespaces run records. The nanosecond timestamp in the
// key makes lexicographic key order equal chronological order.
const keyPrefix = "run:"

// Record is one journaled run.
type Record struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Outcome     string    `json:"outcome"`
	FatalReason string    `json:"fatal_reason,omitempty"`

	// Recovery fields.
	SnapshotName string `json:"snapshot_name,omitempty"`
	FilesApplied int    `json:"files_applied,omitempty"`
	FilesTotal   int    `json:"files_total,omitempty"`
	Applied      int    `json:"applied,omitempty"`
	Skipped      int    `json:"skipped,omitempty"`
	ErrorCount   int    `json:"error_count,omitempty"`
	Target       string `json:"target,omitempty"`

	// Cleanup fields.
	DeletedCount int `json:"deleted_count,omitempty"`
	FailedCount  int `json:"failed_count,omitempty"`
}

// Options configures the journal store.
type Options struct {
	// Path is the BadgerDB directory.
	Path string
	// SyncWrites forces fsync on every append.
	SyncWrites bool
	// RecordTTL expires records after this duration. Zero keeps them forever.
	RecordTTL time.Duration
}

// Journal is a BadgerDB-backed run log.
type Journal struct {
	db  *badger.DB
	ttl time.Duration

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens the journal database at the configured path.
func Open(opts Options) (*Journal, error) {
	if opts.Path == "" {
		return nil, errors.New("journal path is required")
	}

	badgerOpts := badger.DefaultOptions(opts.Path)
	badgerOpts.SyncWrites = opts.SyncWrites
	// Badger's own logging is noise next to the structured logs.
	badgerOpts.Logger = nil

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	logging.Info().
		Str("path", opts.Path).
		Bool("sync_writes", opts.SyncWrites).
		Msg("Journal opened")

	return &Journal{db: db, ttl: opts.RecordTTL}, nil
}

// Append persists a run record and returns its assigned ID.
func (j *Journal) Append(rec *Record) (string, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return "", ErrJournalClosed
	}
	j.mu.RUnlock()

	if rec == nil {
		return "", ErrNilRecord
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	key := []byte(fmt.Sprintf("%s%020d:%s", keyPrefix, rec.StartedAt.UnixNano(), rec.ID))
	err = j.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, data)
		if j.ttl > 0 {
			e = e.WithTTL(j.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return "", fmt.Errorf("write journal record: %w", err)
	}

	metrics.RecordJournalAppend()
	return rec.ID, nil
}

// List returns up to limit records, newest first. A non-positive
// limit returns everything.
func (j *Journal) List(limit int) ([]*Record, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil, ErrJournalClosed
	}
	j.mu.RUnlock()

	var records []*Record
	err := j.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// Reverse iteration starts past the last run key.
		seek := append([]byte(keyPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("unmarshal record: %w", err)
				}
				records = append(records, &rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	return records, nil
}

// Count returns the number of stored records.
func (j *Journal) Count() (int, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return 0, ErrJournalClosed
	}
	j.mu.RUnlock()

	count := 0
	err := j.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek([]byte(keyPrefix)); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count journal records: %w", err)
	}
	return count, nil
}

// Close shuts down the journal database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
