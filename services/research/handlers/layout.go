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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/export"
	"github.com/AleutianAI/AleutianResearch/services/research/graph"
	"github.com/AleutianAI/AleutianResearch/services/research/layout"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/session"
)

// HandleLayout computes a positioned layout of the session graph.
//
// The view is captured under the session lock, the computation runs on
// the layout worker pool, and the response echoes the request id so
// clients overlapping requests can discard stale results. The body is
// optional; a missing request id gets a generated UUID.
func HandleLayout(mgr *session.Manager, worker *layout.Worker, metrics *observability.GraphMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleLayout")
		defer span.End()
		start := time.Now()

		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var req datatypes.LayoutRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()

		var view export.View
		sess.With(func(s *graph.Store) {
			view = export.BuildView(s)
		})

		reply, err := worker.Submit(ctx, layout.Request{
			RequestID: req.RequestID,
			Nodes:     view.Nodes,
			Edges:     view.Edges,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordLayout(time.Since(start), false)
			slog.Error("Layout submission failed", "session_id", sess.ID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		select {
		case resp := <-reply:
			if resp.Err != nil {
				span.RecordError(resp.Err)
				span.SetStatus(codes.Error, resp.Err.Error())
				metrics.RecordLayout(time.Since(start), false)
				c.JSON(http.StatusInternalServerError, gin.H{
					"request_id": resp.RequestID,
					"error":      resp.Err.Error(),
				})
				return
			}
			metrics.RecordLayout(time.Since(start), true)
			c.JSON(http.StatusOK, gin.H{
				"session_id": sess.ID,
				"request_id": resp.RequestID,
				"version":    view.Version,
				"layout":     resp.Layout,
			})
		case <-ctx.Done():
			metrics.RecordLayout(time.Since(start), false)
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "layout request cancelled"})
		}
	}
}
