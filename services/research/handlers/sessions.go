// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin HTTP handlers of the research graph
// service. Handlers are constructed as closures over their dependencies
// so tests can wire fresh managers and registries per case.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/export"
	"github.com/AleutianAI/AleutianResearch/services/research/graph"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/session"
)

var tracer = otel.Tracer("aleutian.research.handlers")

// SessionSnapshot is the full session projection returned by the
// snapshot endpoint and pushed over the websocket.
type SessionSnapshot struct {
	SessionID  string            `json:"session_id"`
	Version    uint64            `json:"version"`
	RootID     string            `json:"root_id,omitempty"`
	Nodes      []export.ViewNode `json:"nodes"`
	Edges      []export.ViewEdge `json:"edges"`
	Statistics graph.Statistics  `json:"statistics"`
}

// snapshotOf projects the store into the wire snapshot. Callers must
// hold the session lock (call from inside Session.With).
func snapshotOf(sessionID string, s *graph.Store) SessionSnapshot {
	view := export.BuildView(s)
	return SessionSnapshot{
		SessionID:  sessionID,
		Version:    view.Version,
		RootID:     view.RootID,
		Nodes:      view.Nodes,
		Edges:      view.Edges,
		Statistics: s.Statistics(),
	}
}

// HandleHealth reports service liveness.
func HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "research"})
	}
}

// HandleCreateSession starts a new research session. The body is
// optional; an empty or absent session id gets a generated UUID.
func HandleCreateSession(mgr *session.Manager, metrics *observability.GraphMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sess, err := mgr.Create(req.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "session already exists"})
				return
			}
			slog.Error("Failed to create session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		metrics.SessionOpened()
		c.JSON(http.StatusCreated, gin.H{
			"session_id": sess.ID,
			"created_at": sess.CreatedAt,
		})
	}
}

// HandleListSessions lists the live sessions.
func HandleListSessions(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": mgr.List()})
	}
}

// HandleGetSession returns the full session snapshot: nodes, edges,
// statistics and the version they were taken at.
func HandleGetSession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var snap SessionSnapshot
		sess.With(func(s *graph.Store) {
			snap = snapshotOf(sess.ID, s)
		})
		c.JSON(http.StatusOK, snap)
	}
}

// HandleDeleteSession closes a session. With ?save=true a final
// snapshot is persisted before the session leaves the registry.
func HandleDeleteSession(mgr *session.Manager, metrics *observability.GraphMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		save := c.Query("save") == "true"

		if err := mgr.Close(c.Request.Context(), id, save); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			if save {
				metrics.RecordSnapshotSave(false)
			}
			slog.Error("Failed to close session", "session_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if save {
			metrics.RecordSnapshotSave(true)
		}
		metrics.SessionClosed(id)
		c.JSON(http.StatusOK, gin.H{"session_id": id, "saved": save})
	}
}
