// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianResearch/pkg/extensions"
	"github.com/AleutianAI/AleutianResearch/services/research/layout"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/session"
)

// testEnv wires a full handler stack over fresh dependencies.
type testEnv struct {
	router  *gin.Engine
	mgr     *session.Manager
	metrics *observability.GraphMetrics
}

func newTestEnv(t *testing.T, interceptor extensions.StepInterceptor) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if interceptor == nil {
		interceptor = &extensions.NopStepInterceptor{}
	}

	mgr := session.NewManager(session.Config{}, extensions.NewNopSnapshotStore())
	metrics := observability.NewGraphMetrics(prometheus.NewRegistry())

	worker := layout.NewWorker(nil)
	worker.Start()
	t.Cleanup(worker.Stop)

	router := gin.New()
	router.GET("/health", HandleHealth())
	v1 := router.Group("/v1")
	{
		v1.POST("/sessions", HandleCreateSession(mgr, metrics))
		v1.GET("/sessions", HandleListSessions(mgr))
		v1.GET("/sessions/:id", HandleGetSession(mgr))
		v1.DELETE("/sessions/:id", HandleDeleteSession(mgr, metrics))
		v1.POST("/sessions/:id/steps", HandleAppendStep(mgr, interceptor, metrics))
		v1.POST("/sessions/:id/steps/:stepId/complete", HandleCompleteStep(mgr))
		v1.POST("/sessions/:id/steps/:stepId/error", HandleErrorStep(mgr, metrics))
		v1.PATCH("/sessions/:id/steps/:stepId/metadata", HandleMergeMetadata(mgr))
		v1.POST("/sessions/:id/edges", HandleAddEdge(mgr))
		v1.POST("/sessions/:id/archive", HandleArchive(mgr, metrics, nil))
		v1.POST("/sessions/:id/reset", HandleReset(mgr, metrics))
		v1.GET("/sessions/:id/statistics", HandleStatistics(mgr))
		v1.POST("/sessions/:id/layout", HandleLayout(mgr, worker, metrics))
		v1.GET("/sessions/:id/ws", HandleSessionWebsocket(mgr, metrics))
	}

	return &testEnv{router: router, mgr: mgr, metrics: metrics}
}

// do runs one request and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals the recorder body into a generic map.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// createSession creates a session and returns its id.
func (e *testEnv) createSession(t *testing.T, id string) string {
	t.Helper()
	body := map[string]string{}
	if id != "" {
		body["session_id"] = id
	}
	w := e.do(t, http.MethodPost, "/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["session_id"].(string)
}

// appendStep appends a minimal search step and returns the node id.
func (e *testEnv) appendStep(t *testing.T, sessionID, stepID, parentID string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, fmt.Sprintf("/v1/sessions/%s/steps", sessionID), map[string]interface{}{
		"step": map[string]interface{}{
			"id":    stepID,
			"kind":  "search",
			"title": "Step " + stepID,
		},
		"parent_id": parentID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["node_id"].(string)
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decode(t, w)["status"])
}
