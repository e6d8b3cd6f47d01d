// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

package artifact

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/rewind/internal/logging"
	"github.com/tomtom215/rewind/internal/metrics"
)

// ResilientOptions configures the circuit breaker and per-operation
// timeout applied by ResilientStore.
type ResilientOptions struct {
	// OpTimeout bounds each store operation. Zero disables the bound.
	OpTimeout time.Duration
	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// MaxRequests limits probe requests while the breaker is half-open.
	MaxRequests uint32
}

// ResilientStore decorates a Store with a circuit breaker and a
// per-operation timeout. Repeated backend failures trip the breaker
// so a flapping store fails fast instead of stalling recovery.
type ResilientStore struct {
	inner     Store
	breaker   *gobreaker.CircuitBreaker[interface{}]
	opTimeout time.Duration
}

// NewResilientStore wraps inner with breaker and timeout protection.
func NewResilientStore(inner Store, opts ResilientOptions) *ResilientStore {
	settings := gobreaker.Settings{
		Name:        "artifact-store",
		MaxRequests: opts.MaxRequests,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		// A missing artifact is a valid answer, not a backend fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrArtifactNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Artifact store circuit breaker state changed")
			if to == gobreaker.StateOpen {
				metrics.RecordBreakerOpen()
			}
		},
	}

	return &ResilientStore{
		inner:     inner,
		breaker:   gobreaker.NewCircuitBreaker[interface{}](settings),
		opTimeout: opts.OpTimeout,
	}
}

// State returns the breaker state as a string for diagnostics.
func (s *ResilientStore) State() string {
	return s.breaker.State().String()
}

// List implements Store.
func (s *ResilientStore) List(ctx context.Context) ([]Artifact, error) {
	result, err := s.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return s.inner.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	artifacts, _ := result.([]Artifact)
	return artifacts, nil
}

// Upload implements Store.
func (s *ResilientStore) Upload(ctx context.Context, localPath, name string) (*UploadInfo, error) {
	result, err := s.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return s.inner.Upload(ctx, localPath, name)
	})
	if err != nil {
		return nil, err
	}
	info, _ := result.(*UploadInfo)
	return info, nil
}

// Download implements Store.
func (s *ResilientStore) Download(ctx context.Context, id, destPath string) error {
	_, err := s.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, s.inner.Download(ctx, id, destPath)
	})
	return err
}

// Delete implements Store.
func (s *ResilientStore) Delete(ctx context.Context, id string) error {
	_, err := s.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, s.inner.Delete(ctx, id)
	})
	return err
}

// execute runs fn through the breaker with the operation timeout applied.
func (s *ResilientStore) execute(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}
	return s.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
}
