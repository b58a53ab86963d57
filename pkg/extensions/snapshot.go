// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrSnapshotNotFound is returned by SnapshotStore.Get and Delete when no
// snapshot exists for the session id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists serialized session snapshots.
//
// # Description
//
// The persistence collaborator of the research graph service. Implementations
// store the opaque blob produced by export.Serialize keyed by session id; the
// service never depends on a specific backend.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Put stores the snapshot blob under the session id, replacing any
	// previous snapshot.
	Put(ctx context.Context, sessionID string, blob []byte) error

	// Get returns the stored snapshot blob.
	//
	// Errors: ErrSnapshotNotFound when no snapshot exists.
	Get(ctx context.Context, sessionID string) ([]byte, error)

	// Delete removes the stored snapshot.
	//
	// Errors: ErrSnapshotNotFound when no snapshot exists.
	Delete(ctx context.Context, sessionID string) error

	// List returns the session ids with stored snapshots, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases backend resources. Idempotent.
	Close() error
}

// NopSnapshotStore keeps snapshots in process memory.
//
// The open source default: sessions survive a Save/Load cycle within one
// process but nothing touches disk. Also used as the test double.
type NopSnapshotStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewNopSnapshotStore creates an empty in-memory snapshot store.
func NewNopSnapshotStore() *NopSnapshotStore {
	return &NopSnapshotStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of the blob.
func (s *NopSnapshotStore) Put(_ context.Context, sessionID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[sessionID] = append([]byte(nil), blob...)
	return nil
}

// Get returns a copy of the stored blob.
func (s *NopSnapshotStore) Get(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return append([]byte(nil), blob...), nil
}

// Delete removes the stored blob.
func (s *NopSnapshotStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[sessionID]; !ok {
		return ErrSnapshotNotFound
	}
	delete(s.blobs, sessionID)
	return nil
}

// List returns the stored session ids in sorted order.
func (s *NopSnapshotStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.blobs))
	for id := range s.blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (s *NopSnapshotStore) Close() error { return nil }

var _ SnapshotStore = (*NopSnapshotStore)(nil)
