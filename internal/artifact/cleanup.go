// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package artifact

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/rewind/internal/logging"
	"github.com/tomtom215/rewind/internal/metrics"
)

// CleanupPolicy controls retention cleanup behavior.
type CleanupPolicy struct {
	// RetentionDays is the age threshold. Artifacts older than this
	// many days are deleted. Zero or negative disables cleanup.
	RetentionDays int
	// MaxParallelDeletes bounds concurrent delete operations.
	MaxParallelDeletes int
	// DeletesPerSecond throttles delete calls against the backend.
	// Zero disables throttling.
	DeletesPerSecond float64
}

// CleanupError records a single failed deletion.
type CleanupError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e CleanupError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Name, e.Err)
}

// CleanupResult summarizes a retention cleanup pass.
type CleanupResult struct {
	// DeletedCount is the number of artifacts successfully deleted.
	DeletedCount int
	// DeletedNames lists deleted artifacts, sorted by name.
	DeletedNames []string
	// Errors lists artifacts whose deletion failed. A failure never
	// stops the rest of the pass.
	Errors []CleanupError
	// Duration is the wall-clock time of the pass.
	Duration time.Duration
}

// Cleanup deletes every artifact older than the retention threshold.
// Deletions run in a bounded worker pool and each failure is isolated
// to its own artifact. The listing itself failing, or a disabled
// policy, returns an error with no partial result.
func Cleanup(ctx context.Context, store Store, policy CleanupPolicy, now time.Time) (*CleanupResult, error) {
	if policy.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention cleanup disabled: retention_days=%d", policy.RetentionDays)
	}

	start := time.Now()
	cutoff := now.AddDate(0, 0, -policy.RetentionDays)

	artifacts, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	expired := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.CreatedAt.Before(cutoff) {
			expired = append(expired, a)
		}
	}

	logging.Info().
		Int("total", len(artifacts)).
		Int("expired", len(expired)).
		Time("cutoff", cutoff).
		Msg("Retention cleanup scan complete")

	result := &CleanupResult{}
	if len(expired) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	workers := policy.MaxParallelDeletes
	if workers < 1 {
		workers = 1
	}

	var limiter *rate.Limiter
	if policy.DeletesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(policy.DeletesPerSecond), 1)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan Artifact)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				deleteOne(ctx, store, limiter, a, &mu, result)
			}
		}()
	}

	for _, a := range expired {
		jobs <- a
	}
	close(jobs)
	wg.Wait()

	sort.Strings(result.DeletedNames)
	result.Duration = time.Since(start)

	logging.Info().
		Int("deleted", result.DeletedCount).
		Int("failed", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Retention cleanup complete")

	return result, nil
}

// deleteOne deletes a single expired artifact and records the outcome.
func deleteOne(ctx context.Context, store Store, limiter *rate.Limiter, a Artifact, mu *sync.Mutex, result *CleanupResult) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			mu.Lock()
			result.Errors = append(result.Errors, CleanupError{Name: a.Name, Err: err})
			mu.Unlock()
			return
		}
	}

	if err := store.Delete(ctx, a.ID); err != nil {
		logging.Warn().
			Err(err).
			Str("artifact", a.Name).
			Msg("Failed to delete expired artifact")
		metrics.RecordCleanupDeleteFailure()

		mu.Lock()
		result.Errors = append(result.Errors, CleanupError{Name: a.Name, Err: err})
		mu.Unlock()
		return
	}

	metrics.RecordArtifactDeleted()

	mu.Lock()
	result.DeletedCount++
	result.DeletedNames = append(result.DeletedNames, a.Name)
	mu.Unlock()
}
