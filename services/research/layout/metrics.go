// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for layout operations.
var (
	tracer = otel.Tracer("aleutian.research.layout")
	meter  = otel.Meter("aleutian.research.layout")
)

// Metrics for layout computation and caching.
var (
	layoutCacheHits      metric.Int64Counter
	layoutCacheMisses    metric.Int64Counter
	layoutCacheEvictions metric.Int64Counter
	layoutComputeLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		layoutCacheHits, err = meter.Int64Counter(
			"layout_cache_hits_total",
			metric.WithDescription("Total number of layout cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		layoutCacheMisses, err = meter.Int64Counter(
			"layout_cache_misses_total",
			metric.WithDescription("Total number of layout cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		layoutCacheEvictions, err = meter.Int64Counter(
			"layout_cache_evictions_total",
			metric.WithDescription("Total number of layout cache evictions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		layoutComputeLatency, err = meter.Float64Histogram(
			"layout_compute_duration_seconds",
			metric.WithDescription("Duration of layout computations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordCacheHit records a layout cache hit.
func recordCacheHit(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	layoutCacheHits.Add(ctx, 1)
}

// recordCacheMiss records a layout cache miss.
func recordCacheMiss(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	layoutCacheMisses.Add(ctx, 1)
}

// recordCacheEviction records a layout cache eviction.
func recordCacheEviction(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	layoutCacheEvictions.Add(ctx, 1)
}

// recordComputeLatency records one layout computation's duration.
func recordComputeLatency(ctx context.Context, duration time.Duration, nodeCount int) {
	if err := initMetrics(); err != nil {
		return
	}
	layoutComputeLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Int("node_count", nodeCount)),
	)
}

// startLayoutSpan creates a span for a layout operation.
func startLayoutSpan(ctx context.Context, operation string, nodeCount, edgeCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Layout."+operation,
		trace.WithAttributes(
			attribute.String("layout.operation", operation),
			attribute.Int("layout.node_count", nodeCount),
			attribute.Int("layout.edge_count", edgeCount),
		),
	)
}
