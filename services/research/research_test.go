// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianResearch/pkg/extensions"
)

func init() {
	// Reduce test output noise.
	gin.SetMode(gin.TestMode)
}

func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})

	assert.Equal(t, 12230, cfg.Port)
	assert.Equal(t, 128, cfg.LayoutCacheMaxEntries)
	assert.Equal(t, int64(8<<20), cfg.LayoutCacheMaxBytes)
	assert.Equal(t, 2, cfg.LayoutWorkers)
	assert.Equal(t, 16, cfg.LayoutQueueSize)
}

func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := applyConfigDefaults(Config{
		Port:                  8080,
		DataDir:               "/tmp/research",
		LayoutCacheMaxEntries: 32,
		LayoutWorkers:         4,
	})

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/research", cfg.DataDir)
	assert.Equal(t, 32, cfg.LayoutCacheMaxEntries)
	assert.Equal(t, 4, cfg.LayoutWorkers)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("RESEARCH_PORT", "9000")
	t.Setenv("RESEARCH_DATA_DIR", "/data/research")
	t.Setenv("RESEARCH_ARCHIVE_MAX_NODES", "250")

	cfg := ConfigFromEnv()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/data/research", cfg.DataDir)
	assert.Equal(t, 250, cfg.ArchiveMaxNodes)
}

func TestConfigFromEnv_InvalidInt(t *testing.T) {
	t.Setenv("RESEARCH_PORT", "not-a-number")
	assert.Equal(t, 12230, ConfigFromEnv().Port)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9100\narchive_max_nodes: 500\n"), 0644))

	cfg, err := loadConfigFile(Config{Port: 12230, DataDir: "/keep"}, path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 500, cfg.ArchiveMaxNodes)
	// Fields absent from the file keep their values.
	assert.Equal(t, "/keep", cfg.DataDir)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := loadConfigFile(Config{}, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func newTestService(t *testing.T, cfg Config, opts *extensions.ServiceOptions) *service {
	t.Helper()
	cfg.GinMode = gin.TestMode
	svc, err := New(cfg, opts)
	require.NoError(t, err)
	s := svc.(*service)
	t.Cleanup(s.cleanup)
	return s
}

func TestNew_ServesRequests(t *testing.T) {
	s := newTestService(t, Config{}, nil)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/sessions",
		strings.NewReader(`{"session_id":"sess-svc"}`)))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_PersistentSnapshots(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(t, Config{DataDir: dir}, nil)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/sessions",
		strings.NewReader(`{"session_id":"sess-p"}`)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/sessions/sess-p?save=true", nil))
	require.Equal(t, http.StatusOK, w.Code)

	ids, err := s.manager.Stored(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, "sess-p")
}

func TestNew_InjectedSnapshotStore(t *testing.T) {
	injected := extensions.NewNopSnapshotStore()
	s := newTestService(t, Config{}, &extensions.ServiceOptions{SnapshotStore: injected})

	assert.Same(t, injected, s.opts.SnapshotStore)
	assert.False(t, s.ownsSnapshots)
}

func TestHotReload_Limits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archive_max_nodes: 100\n"), 0644))

	s := newTestService(t, Config{ConfigFile: path}, nil)
	require.Equal(t, int64(100), s.archiveCeiling.Load())

	require.NoError(t, os.WriteFile(path,
		[]byte("archive_max_nodes: 40\nlayout_cache_max_entries: 16\n"), 0644))

	// The watcher applies changes asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for s.archiveCeiling.Load() != 40 {
		require.True(t, time.Now().Before(deadline), "ceiling was never reloaded")
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 16, s.cache.Stats().MaxEntries)
}
