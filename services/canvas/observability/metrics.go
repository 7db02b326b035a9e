// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the canvas pipeline.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	canvasSubsystem  = "canvas"
)

var (
	// ToolCallsTotal counts normalized tool calls by tool and outcome.
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: canvasSubsystem,
		Name:      "tool_calls_total",
		Help:      "Tool calls executed by tool name and outcome",
	}, []string{"tool", "outcome"})

	// DedupSuppressionsTotal counts redelivered frames the ledger dropped.
	DedupSuppressionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: canvasSubsystem,
		Name:      "dedup_suppressions_total",
		Help:      "Tool-call frames suppressed by the dedup ledger",
	})

	// PromptCharsWritten observes free-text field sizes written by update
	// actions. Measurement only; it never blocks or alters the write.
	PromptCharsWritten = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: canvasSubsystem,
		Name:      "prompt_chars_written",
		Help:      "Characters written to free-text node fields",
		Buckets:   []float64{16, 64, 256, 1024, 4096, 16384},
	}, []string{"field"})

	// ReportFailuresTotal counts result POST-backs that could not be
	// delivered. Delivery failure never affects the local result.
	ReportFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: canvasSubsystem,
		Name:      "report_failures_total",
		Help:      "Result callback deliveries that failed",
	})

	// ActiveSessions tracks open canvas sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: canvasSubsystem,
		Name:      "active_sessions",
		Help:      "Currently open canvas sessions",
	})

	// NodeRunsTotal counts node executions by kind, backend, and outcome.
	NodeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: canvasSubsystem,
		Name:      "node_runs_total",
		Help:      "Node executions by kind, backend, and outcome",
	}, []string{"kind", "backend", "outcome"})

	// RunDurationSeconds measures node execution latency by backend.
	RunDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: canvasSubsystem,
		Name:      "run_duration_seconds",
		Help:      "Node execution duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend"})
)
