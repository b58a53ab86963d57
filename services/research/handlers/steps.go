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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianResearch/pkg/extensions"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/graph"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/session"
)

// HandleAppendStep materializes an incoming step as a graph node.
//
// Re-sending a step id returns the existing node with 200 instead of
// creating a duplicate. An unresolvable parent does not fail the
// request; the node is created unlinked.
func HandleAppendStep(mgr *session.Manager, interceptor extensions.StepInterceptor, metrics *observability.GraphMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAppendStep")
		defer span.End()

		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var req datatypes.AppendStepRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		info := extensions.StepInfo{
			SessionID: sess.ID,
			StepID:    req.Step.ID,
			Kind:      req.Step.Kind,
			Title:     req.Step.Title,
		}
		if err := interceptor.Intercept(ctx, info); err != nil {
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("Step rejected by interceptor",
				"session_id", sess.ID, "step_id", req.Step.ID, "error", err)
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}

		var (
			node    *graph.Node
			created bool
			version uint64
			count   int
		)
		sess.With(func(s *graph.Store) {
			before := s.NodeCount()
			node = s.AddNode(req.Step.ToGraph(), req.ParentID, nil)
			count = s.NodeCount()
			created = count > before
			version = s.Version()
		})
		if node == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "step has no id"})
			return
		}

		if created {
			metrics.RecordStep(req.Step.Kind)
			metrics.SetLiveNodes(sess.ID, count)
		}

		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{
			"session_id": sess.ID,
			"node_id":    node.ID,
			"level":      node.Level,
			"version":    version,
		})
	}
}

// resolveNode maps the :stepId path parameter to the derived node id
// and verifies the node is live. Returns ok=false after writing the 404.
func resolveNode(c *gin.Context, sess *session.Session) (string, bool) {
	nodeID := graph.NodeIDForStep(c.Param("stepId"))
	var found bool
	sess.With(func(s *graph.Store) {
		_, found = s.Node(nodeID)
	})
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "step not found"})
		return "", false
	}
	return nodeID, true
}

// HandleCompleteStep records the completion duration of a step. A
// second completion is a no-op returning the originally recorded
// duration.
func HandleCompleteStep(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		nodeID, ok := resolveNode(c, sess)
		if !ok {
			return
		}

		var durationMillis int64
		var version uint64
		sess.With(func(s *graph.Store) {
			s.UpdateNodeDuration(nodeID)
			if node, found := s.Node(nodeID); found {
				durationMillis = node.Duration.Milliseconds()
			}
			version = s.Version()
		})

		c.JSON(http.StatusOK, gin.H{
			"session_id":      sess.ID,
			"node_id":         nodeID,
			"duration_millis": durationMillis,
			"version":         version,
		})
	}
}

// HandleErrorStep marks a step as failed. The node's kind becomes the
// error kind and an error edge is linked from the last healthy node on
// the current path.
func HandleErrorStep(mgr *session.Manager, metrics *observability.GraphMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var req datatypes.ErrorStepRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		nodeID, ok := resolveNode(c, sess)
		if !ok {
			return
		}

		var version uint64
		sess.With(func(s *graph.Store) {
			s.MarkNodeError(nodeID, req.Message)
			version = s.Version()
		})

		metrics.RecordStepError()
		c.JSON(http.StatusOK, gin.H{
			"session_id": sess.ID,
			"node_id":    nodeID,
			"version":    version,
		})
	}
}

// HandleMergeMetadata shallow-merges partial metadata into a step's
// node.
func HandleMergeMetadata(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var req datatypes.MergeMetadataRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		nodeID, ok := resolveNode(c, sess)
		if !ok {
			return
		}

		var version uint64
		sess.With(func(s *graph.Store) {
			s.UpdateNodeMetadata(nodeID, req.Metadata.ToGraph())
			version = s.Version()
		})

		c.JSON(http.StatusOK, gin.H{
			"session_id": sess.ID,
			"node_id":    nodeID,
			"version":    version,
		})
	}
}

// HandleAddEdge creates an explicit edge between two existing nodes.
// Source and target are node ids, not step ids.
func HandleAddEdge(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var req datatypes.AddEdgeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var edge *graph.Edge
		var version uint64
		sess.With(func(s *graph.Store) {
			edge = s.AddEdge(req.Source, req.Target, graph.EdgeKind(req.Kind), req.Label)
			version = s.Version()
		})
		if edge == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "source or target node not found"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"session_id": sess.ID,
			"edge_id":    edge.ID,
			"version":    version,
		})
	}
}

// HandleArchive bounds the session to at most max_nodes live nodes
// plus the critical path. The store runs the pass in batch mode, so
// websocket subscribers see one coalesced update instead of a removal
// flood.
//
// ceiling, when non-nil, returns the service-wide retention ceiling
// (hot-reloadable from config); requests asking for more are clamped.
func HandleArchive(mgr *session.Manager, metrics *observability.GraphMetrics, ceiling func() int) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleArchive")
		defer span.End()

		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var req datatypes.ArchiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		maxNodes := req.MaxNodes
		if ceiling != nil {
			if limit := ceiling(); limit > 0 && maxNodes > limit {
				maxNodes = limit
			}
		}

		resp := datatypes.ArchiveResponse{SessionID: sess.ID}
		sess.With(func(s *graph.Store) {
			resp.DroppedNodes, resp.DroppedEdges = s.ArchiveOldNodes(maxNodes)
			resp.RemainingNodes = s.NodeCount()
			resp.Version = s.Version()
		})

		metrics.RecordArchive(resp.DroppedNodes)
		metrics.SetLiveNodes(sess.ID, resp.RemainingNodes)
		c.JSON(http.StatusOK, resp)
	}
}

// HandleReset clears all session state. The version is rebased so
// post-reset versions never repeat pre-reset ones.
func HandleReset(mgr *session.Manager, metrics *observability.GraphMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var version uint64
		sess.With(func(s *graph.Store) {
			s.Reset()
			version = s.Version()
		})

		metrics.SetLiveNodes(sess.ID, 0)
		c.JSON(http.StatusOK, gin.H{"session_id": sess.ID, "version": version})
	}
}

// HandleStatistics returns the derived session statistics.
func HandleStatistics(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var stats graph.Statistics
		var version uint64
		sess.With(func(s *graph.Store) {
			stats = s.Statistics()
			version = s.Version()
		})

		c.JSON(http.StatusOK, gin.H{
			"session_id": sess.ID,
			"version":    version,
			"statistics": stats,
		})
	}
}
