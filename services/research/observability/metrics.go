// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the research
// graph service.
//
// Metrics cover step intake, error marking, archival, layout
// computation, and websocket push. They are exposed on /metrics; use
// with Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace and subsystem for all research service metrics.
const (
	metricsNamespace = "aleutian"
	graphSubsystem   = "research"
)

// GraphMetrics holds the Prometheus metrics of the research service.
//
// Construct once per registry with NewGraphMetrics; handlers receive
// the instance by injection, never through a package-level singleton.
type GraphMetrics struct {
	// StepsTotal counts appended steps by kind.
	// Labels: kind (search, analysis, ...)
	StepsTotal *prometheus.CounterVec

	// StepErrorsTotal counts nodes marked as failed.
	StepErrorsTotal prometheus.Counter

	// ArchiveRunsTotal counts explicit archive passes.
	ArchiveRunsTotal prometheus.Counter

	// ArchivedNodesTotal counts nodes dropped by archival.
	ArchivedNodesTotal prometheus.Counter

	// LayoutRequestsTotal counts layout requests by outcome.
	// Labels: status (success, error)
	LayoutRequestsTotal *prometheus.CounterVec

	// LayoutDurationSeconds measures end-to-end layout latency as seen
	// by the HTTP handler, including queueing.
	LayoutDurationSeconds prometheus.Histogram

	// LiveSessions tracks the number of registered sessions.
	LiveSessions prometheus.Gauge

	// LiveNodes tracks live node counts per session.
	// Labels: session_id
	LiveNodes *prometheus.GaugeVec

	// WebsocketConnections tracks open snapshot push connections.
	WebsocketConnections prometheus.Gauge

	// SnapshotSavesTotal counts snapshot persistence operations by
	// outcome.
	// Labels: status (success, error)
	SnapshotSavesTotal *prometheus.CounterVec
}

// NewGraphMetrics creates and registers the service metrics on reg.
//
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration
// panics.
func NewGraphMetrics(reg prometheus.Registerer) *GraphMetrics {
	factory := promauto.With(reg)

	return &GraphMetrics{
		StepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "steps_total",
				Help:      "Total research steps appended, by step kind",
			},
			[]string{"kind"},
		),

		StepErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "step_errors_total",
				Help:      "Total nodes marked as failed",
			},
		),

		ArchiveRunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "archive_runs_total",
				Help:      "Total explicit archive passes",
			},
		),

		ArchivedNodesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "archived_nodes_total",
				Help:      "Total nodes dropped by archival",
			},
		),

		LayoutRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "layout_requests_total",
				Help:      "Total layout requests by outcome",
			},
			[]string{"status"},
		),

		LayoutDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "layout_duration_seconds",
				Help:      "End-to-end layout latency including queueing",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),

		LiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "live_sessions",
				Help:      "Number of registered sessions",
			},
		),

		LiveNodes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "live_nodes",
				Help:      "Live node count per session",
			},
			[]string{"session_id"},
		),

		WebsocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "websocket_connections",
				Help:      "Open snapshot push connections",
			},
		),

		SnapshotSavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "snapshot_saves_total",
				Help:      "Snapshot persistence operations by outcome",
			},
			[]string{"status"},
		),
	}
}

// statusLabel maps a success flag to the shared status label values.
func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordStep records one appended step.
func (m *GraphMetrics) RecordStep(kind string) {
	m.StepsTotal.WithLabelValues(kind).Inc()
}

// RecordStepError records one node marked as failed.
func (m *GraphMetrics) RecordStepError() {
	m.StepErrorsTotal.Inc()
}

// RecordArchive records one archive pass and its dropped node count.
func (m *GraphMetrics) RecordArchive(droppedNodes int) {
	m.ArchiveRunsTotal.Inc()
	m.ArchivedNodesTotal.Add(float64(droppedNodes))
}

// RecordLayout records one layout request outcome and latency.
func (m *GraphMetrics) RecordLayout(duration time.Duration, success bool) {
	m.LayoutRequestsTotal.WithLabelValues(statusLabel(success)).Inc()
	m.LayoutDurationSeconds.Observe(duration.Seconds())
}

// SessionOpened bumps the live session gauge.
func (m *GraphMetrics) SessionOpened() {
	m.LiveSessions.Inc()
}

// SessionClosed drops the live session gauge and forgets the
// session's node gauge.
func (m *GraphMetrics) SessionClosed(sessionID string) {
	m.LiveSessions.Dec()
	m.LiveNodes.DeleteLabelValues(sessionID)
}

// SetLiveNodes updates the node count gauge for one session.
func (m *GraphMetrics) SetLiveNodes(sessionID string, count int) {
	m.LiveNodes.WithLabelValues(sessionID).Set(float64(count))
}

// WebsocketOpened bumps the open connection gauge.
func (m *GraphMetrics) WebsocketOpened() {
	m.WebsocketConnections.Inc()
}

// WebsocketClosed drops the open connection gauge.
func (m *GraphMetrics) WebsocketClosed() {
	m.WebsocketConnections.Dec()
}

// RecordSnapshotSave records one persistence operation outcome.
func (m *GraphMetrics) RecordSnapshotSave(success bool) {
	m.SnapshotSavesTotal.WithLabelValues(statusLabel(success)).Inc()
}
