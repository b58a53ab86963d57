// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the registry of live research sessions.
//
// One logical session owns one graph.Store. The store itself is
// single-threaded by design; the manager provides the serialization
// discipline at the service boundary with a per-session mutex, so the
// core stays lock-free. Persistence goes through the injected
// extensions.SnapshotStore; the manager never touches a backend
// directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianResearch/pkg/extensions"
	"github.com/AleutianAI/AleutianResearch/services/research/export"
	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

var (
	// ErrSessionNotFound is returned for operations on unknown ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists rejects creating a session under a taken id.
	ErrSessionExists = errors.New("session already exists")
)

// Session is one live research session: a graph store plus the mutex
// that serializes access to it.
type Session struct {
	// ID is the session identifier.
	ID string

	// CreatedAt is the session creation time.
	CreatedAt time.Time

	mu    sync.Mutex
	store *graph.Store
}

// With runs fn with exclusive access to the session's store.
//
// All store access from service code goes through here; the store has
// no internal locking. fn must not retain the store past the call and
// must not call With re-entrantly.
func (s *Session) With(fn func(*graph.Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store)
}

// Subscribe registers a listener on the session's event bus and
// returns its unsubscribe function.
func (s *Session) Subscribe(fn graph.ListenerFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Subscribe(fn)
}

// Config configures a Manager.
type Config struct {
	// StoreOptions are applied to every store the manager creates or
	// restores (clock and logger injection for tests).
	StoreOptions []graph.StoreOption

	// Logger receives manager logs. Default: slog.Default().
	Logger *slog.Logger
}

// Manager is the session registry.
//
// # Thread Safety
//
// Safe for concurrent use. The registry map is guarded by the
// manager's mutex; each session's store is guarded by the session
// mutex (see Session.With).
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	snapshots extensions.SnapshotStore
	storeOpts []graph.StoreOption
	log       *slog.Logger
}

// NewManager creates a session manager over the given snapshot store.
// A nil snapshot store falls back to the in-memory default.
func NewManager(cfg Config, snapshots extensions.SnapshotStore) *Manager {
	if snapshots == nil {
		snapshots = extensions.NewNopSnapshotStore()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		snapshots: snapshots,
		storeOpts: cfg.StoreOptions,
		log:       log,
	}
}

// Create registers a new session. An empty id gets a generated UUID.
//
// Errors: ErrSessionExists when the id is already live.
func (m *Manager) Create(id string) (*Session, error) {
	if id == "" {
		id = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	sess := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		store:     graph.NewStore(m.storeOpts...),
	}
	m.sessions[id] = sess
	m.log.Info("session created", slog.String("session_id", id))
	return sess, nil
}

// Get returns a live session.
//
// Errors: ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Close removes a session from the registry, optionally saving a final
// snapshot first.
//
// Errors: ErrSessionNotFound; snapshot errors when save is true.
func (m *Manager) Close(ctx context.Context, id string, save bool) error {
	if save {
		if err := m.Save(ctx, id); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	m.log.Info("session closed", slog.String("session_id", id), slog.Bool("saved", save))
	return nil
}

// Save serializes the session graph and writes it to the snapshot
// store under the session id.
//
// Errors: ErrSessionNotFound; serialization and backend errors.
func (m *Manager) Save(ctx context.Context, id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}

	var blob []byte
	var serr error
	sess.With(func(s *graph.Store) {
		blob, serr = export.Serialize(s)
	})
	if serr != nil {
		return fmt.Errorf("serialize session %s: %w", id, serr)
	}

	if err := m.snapshots.Put(ctx, id, blob); err != nil {
		return fmt.Errorf("store snapshot %s: %w", id, err)
	}
	m.log.Debug("session saved", slog.String("session_id", id), slog.Int("bytes", len(blob)))
	return nil
}

// Load restores a session from its stored snapshot and registers it.
//
// Errors: ErrSessionExists when the id is already live;
// extensions.ErrSnapshotNotFound; export.ErrMalformedSnapshot (the
// caller must discard the blob and start clean).
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	_, live := m.sessions[id]
	m.mu.RUnlock()
	if live {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	blob, err := m.snapshots.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}

	store, err := export.Deserialize(blob, m.storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}

	sess := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		store:     store,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; exists {
		// Raced with a concurrent Create or Load.
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	m.sessions[id] = sess
	m.log.Info("session restored", slog.String("session_id", id))
	return sess, nil
}

// Delete removes a stored snapshot without touching live sessions.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.snapshots.Delete(ctx, id)
}

// Info describes one live session.
type Info struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Version   uint64    `json:"version"`
	NodeCount int       `json:"node_count"`
}

// List returns info for every live session, sorted by id.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		info := Info{SessionID: sess.ID, CreatedAt: sess.CreatedAt}
		sess.With(func(s *graph.Store) {
			info.Version = s.Version()
			info.NodeCount = s.NodeCount()
		})
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SessionID < infos[j].SessionID })
	return infos
}

// Stored returns the session ids with persisted snapshots.
func (m *Manager) Stored(ctx context.Context) ([]string, error) {
	return m.snapshots.List(ctx)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
