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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianResearch/pkg/extensions"
)

func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	store, err := NewSnapshotStore(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "sess-1", []byte(`{"schema_version":1}`)))

	blob, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"schema_version":1}`), blob)

	// Overwrite replaces.
	require.NoError(t, store.Put(ctx, "sess-1", []byte(`{"schema_version":2}`)))
	blob, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"schema_version":2}`), blob)
}

func TestSnapshotStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, extensions.ErrSnapshotNotFound)
}

func TestSnapshotStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "sess-d", []byte("blob")))
	require.NoError(t, store.Delete(ctx, "sess-d"))

	_, err := store.Get(ctx, "sess-d")
	assert.ErrorIs(t, err, extensions.ErrSnapshotNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "sess-d"), extensions.ErrSnapshotNotFound)
}

func TestSnapshotStore_List(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Put(ctx, "sess-b", []byte("b")))
	require.NoError(t, store.Put(ctx, "sess-a", []byte("a")))

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-a", "sess-b"}, ids)
}

func TestSnapshotStore_ContextCancelled(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Put(ctx, "sess", []byte("x")))
	_, err := store.Get(ctx, "sess")
	assert.Error(t, err)
}

func TestSnapshotStore_PersistentPathRequired(t *testing.T) {
	_, err := NewSnapshotStore(Config{})
	assert.Error(t, err)
}

func TestSnapshotStore_PersistentRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewSnapshotStore(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "sess-p", []byte("persisted")))
	require.NoError(t, store.Close())

	reopened, err := NewSnapshotStore(DefaultConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	blob, err := reopened.Get(ctx, "sess-p")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), blob)
}
