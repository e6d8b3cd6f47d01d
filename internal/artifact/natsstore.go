// Rewind - Snapshot and Change-Log Database Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rewind

//go:build nats

package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/rewind/internal/logging"
)

// NATSStore is a Store backed by a JetStream Object Store bucket.
// It can run against an external NATS server or start an embedded one
// for self-contained deployments.
type NATSStore struct {
	nc     *natsgo.Conn
	obj    jetstream.ObjectStore
	server *EmbeddedServer
}

// NewNATSStore connects to NATS (starting an embedded server first if
// requested) and ensures the object store bucket exists.
func NewNATSStore(ctx context.Context, opts NATSOptions) (*NATSStore, error) {
	store := &NATSStore{}

	url := opts.URL
	if opts.EmbeddedServer {
		server, err := NewEmbeddedServer(&ServerConfig{
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          opts.StoreDir,
			JetStreamMaxMem:   opts.MaxMemory,
			JetStreamMaxStore: opts.MaxStore,
		})
		if err != nil {
			return nil, err
		}
		store.server = server
		url = server.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	nc, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	store.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	obj, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      opts.Bucket,
		Description: "Database snapshots and incremental change logs",
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure object store bucket %s: %w", opts.Bucket, err)
	}
	store.obj = obj

	logging.Info().Str("bucket", opts.Bucket).Msg("JetStream object store ready")
	return store, nil
}

// List implements Store.
func (s *NATSStore) List(ctx context.Context) ([]Artifact, error) {
	infos, err := s.obj.List(ctx)
	if errors.Is(err, jetstream.ErrNoObjectsFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list object store: %w", err)
	}

	artifacts := make([]Artifact, 0, len(infos))
	for _, info := range infos {
		if info.Deleted {
			continue
		}
		artifacts = append(artifacts, Artifact{
			ID:        info.Name,
			Name:      info.Name,
			CreatedAt: info.ModTime.UTC(),
			SizeBytes: int64(info.Size), //nolint:gosec // object sizes fit in int64
		})
	}
	return artifacts, nil
}

// Upload implements Store.
func (s *NATSStore) Upload(ctx context.Context, localPath, name string) (*UploadInfo, error) {
	f, err := os.Open(localPath) //nolint:gosec // paths are operator-controlled
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := s.obj.Put(ctx, jetstream.ObjectMeta{Name: name}, f)
	if err != nil {
		return nil, fmt.Errorf("failed to upload artifact %s: %w", name, err)
	}

	return &UploadInfo{
		ID:          info.Name,
		Location:    fmt.Sprintf("nats://%s/%s", info.Bucket, info.Name),
		ContentHash: info.Digest,
	}, nil
}

// Download implements Store.
func (s *NATSStore) Download(ctx context.Context, id, destPath string) error {
	err := s.obj.GetFile(ctx, id, destPath)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("artifact %s: %w", id, ErrArtifactNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to download artifact %s: %w", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *NATSStore) Delete(ctx context.Context, id string) error {
	err := s.obj.Delete(ctx, id)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("artifact %s: %w", id, ErrArtifactNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", id, err)
	}
	return nil
}

// Close releases the NATS connection and stops the embedded server if
// one was started.
func (s *NATSStore) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
	if s.server != nil {
		if err := s.server.Shutdown(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
	}
}
