// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianResearch/pkg/extensions"
	"github.com/AleutianAI/AleutianResearch/services/research/handlers"
	"github.com/AleutianAI/AleutianResearch/services/research/layout"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/session"
)

// SetupRoutes registers every endpoint of the research graph service.
//
// gatherer feeds /metrics; pass the registry the GraphMetrics were
// created on.
// archiveCeiling, when non-nil, supplies the hot-reloadable retention
// ceiling applied to archive requests.
func SetupRoutes(router *gin.Engine, mgr *session.Manager, worker *layout.Worker,
	interceptor extensions.StepInterceptor, metrics *observability.GraphMetrics,
	gatherer prometheus.Gatherer, archiveCeiling func() int) {

	if interceptor == nil {
		interceptor = &extensions.NopStepInterceptor{}
	}

	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.HandleCreateSession(mgr, metrics))
			sessions.GET("", handlers.HandleListSessions(mgr))
			sessions.GET("/:id", handlers.HandleGetSession(mgr))
			sessions.DELETE("/:id", handlers.HandleDeleteSession(mgr, metrics))

			sessions.POST("/:id/steps", handlers.HandleAppendStep(mgr, interceptor, metrics))
			sessions.POST("/:id/steps/:stepId/complete", handlers.HandleCompleteStep(mgr))
			sessions.POST("/:id/steps/:stepId/error", handlers.HandleErrorStep(mgr, metrics))
			sessions.PATCH("/:id/steps/:stepId/metadata", handlers.HandleMergeMetadata(mgr))

			sessions.POST("/:id/edges", handlers.HandleAddEdge(mgr))
			sessions.POST("/:id/archive", handlers.HandleArchive(mgr, metrics, archiveCeiling))
			sessions.POST("/:id/reset", handlers.HandleReset(mgr, metrics))
			sessions.GET("/:id/statistics", handlers.HandleStatistics(mgr))

			sessions.POST("/:id/layout", handlers.HandleLayout(mgr, worker, metrics))
			sessions.GET("/:id/ws", handlers.HandleSessionWebsocket(mgr, metrics))
		}
	}
}
