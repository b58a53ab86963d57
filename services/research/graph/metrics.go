// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for graph mutations. Store methods carry no
// context, so recordings use a detached background context.
var meter = otel.Meter("aleutian.research.graph")

// Metrics for graph mutation operations.
var (
	nodesAdded      metric.Int64Counter
	edgesAdded      metric.Int64Counter
	archiveDropped  metric.Int64Histogram
	archiveDuration metric.Float64Histogram
	resets          metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		nodesAdded, err = meter.Int64Counter(
			"research_graph_nodes_added_total",
			metric.WithDescription("Total nodes added to session graphs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesAdded, err = meter.Int64Counter(
			"research_graph_edges_added_total",
			metric.WithDescription("Total edges added to session graphs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		archiveDropped, err = meter.Int64Histogram(
			"research_graph_archive_dropped",
			metric.WithDescription("Nodes dropped per archival pass"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		archiveDuration, err = meter.Float64Histogram(
			"research_graph_archive_duration_seconds",
			metric.WithDescription("Duration of archival passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resets, err = meter.Int64Counter(
			"research_graph_resets_total",
			metric.WithDescription("Total session graph resets"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordNodeAdded records a node addition with its step kind.
func recordNodeAdded(kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	nodesAdded.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}

// recordEdgeAdded records an explicit edge addition with its kind.
func recordEdgeAdded(kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	edgesAdded.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}

// recordArchive records the outcome of an archival pass.
func recordArchive(nodes, edges int, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	archiveDropped.Record(ctx, int64(nodes),
		metric.WithAttributes(attribute.String("entity", "node")))
	archiveDropped.Record(ctx, int64(edges),
		metric.WithAttributes(attribute.String("entity", "edge")))
	archiveDuration.Record(ctx, duration.Seconds())
}

// recordReset records a session reset.
func recordReset() {
	if err := initMetrics(); err != nil {
		return
	}
	resets.Add(context.Background(), 1)
}
