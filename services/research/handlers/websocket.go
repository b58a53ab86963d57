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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianResearch/services/research/graph"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/session"
)

const websocketWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Local deployment; no cross-origin restrictions.
	},
}

// sendJSON writes one JSON message with a write deadline.
func sendJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(websocketWriteTimeout))
	return conn.WriteJSON(v)
}

// HandleSessionWebsocket upgrades the connection and pushes the full
// session snapshot whenever the graph changes.
//
// The bus listener runs on the mutating goroutine while the session
// lock is held, so it never touches the store itself; it only signals
// the push goroutine through a one-slot channel. Bursts of events
// (batch replay, archive sweeps) collapse into a single pending signal,
// and each push reads the then-current snapshot, so clients see one
// coalesced update per mutation group rather than a per-event flood.
func HandleSessionWebsocket(mgr *session.Manager, metrics *observability.GraphMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Websocket upgrade failed", "session_id", sess.ID, "error", err)
			return
		}
		defer conn.Close()

		metrics.WebsocketOpened()
		defer metrics.WebsocketClosed()
		slog.Info("Websocket connected", "session_id", sess.ID)

		notify := make(chan struct{}, 1)
		unsubscribe := sess.Subscribe(func(graph.Event) {
			select {
			case notify <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		// Reader goroutine: we never expect client messages, but reading
		// is how gorilla surfaces close frames and dead peers.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if err := pushSnapshot(conn, sess); err != nil {
			return
		}

		for {
			select {
			case <-notify:
				if err := pushSnapshot(conn, sess); err != nil {
					slog.Debug("Websocket push failed, closing",
						"session_id", sess.ID, "error", err)
					return
				}
			case <-done:
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}

// pushSnapshot captures the current snapshot under the session lock and
// writes it to the connection.
func pushSnapshot(conn *websocket.Conn, sess *session.Session) error {
	var snap SessionSnapshot
	sess.With(func(s *graph.Store) {
		snap = snapshotOf(sess.ID, s)
	})
	return sendJSON(conn, snap)
}
