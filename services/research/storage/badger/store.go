// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianResearch/pkg/extensions"
)

// snapshotKeyPrefix namespaces snapshot keys so future key families
// (for example per-session config) can share the database.
const snapshotKeyPrefix = "snapshot/"

// SnapshotStore persists session snapshots in BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type SnapshotStore struct {
	db *badger.DB
}

// NewSnapshotStore opens the database from config and returns the
// store. Call Close when done.
func NewSnapshotStore(cfg Config) (*SnapshotStore, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &SnapshotStore{db: db}, nil
}

func snapshotKey(sessionID string) []byte {
	return []byte(snapshotKeyPrefix + sessionID)
}

// Put stores the snapshot blob under the session id.
func (s *SnapshotStore) Put(ctx context.Context, sessionID string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(sessionID), blob)
	})
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", sessionID, err)
	}
	return nil
}

// Get returns the stored snapshot blob.
//
// Errors: extensions.ErrSnapshotNotFound when no snapshot exists.
func (s *SnapshotStore) Get(ctx context.Context, sessionID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(sessionID))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", extensions.ErrSnapshotNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", sessionID, err)
	}
	return blob, nil
}

// Delete removes the stored snapshot.
//
// Errors: extensions.ErrSnapshotNotFound when no snapshot exists.
func (s *SnapshotStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		key := snapshotKey(sessionID)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", extensions.ErrSnapshotNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", sessionID, err)
	}
	return nil
}

// List returns the session ids with stored snapshots, in key order.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(snapshotKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, snapshotKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return ids, nil
}

// Close closes the underlying database. Idempotent via BadgerDB.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

var _ extensions.SnapshotStore = (*SnapshotStore)(nil)
