// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the assistant.
//
// Metrics are exposed via the /metrics endpoint. All metric operations
// are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "opspilot"

const assistantSubsystem = "assistant"

// AssistantMetrics holds all Prometheus metrics for turn processing.
type AssistantMetrics struct {
	// TurnsTotal counts processed turns by intent and outcome.
	// Labels: intent (greeting, data_query, follow_up, out_of_domain),
	// outcome (answered, empty, synthesis_failed, execution_failed)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures end-to-end turn latency.
	// Labels: intent
	TurnDurationSeconds *prometheus.HistogramVec

	// ExecutionErrorsTotal counts execution failures by kind.
	// Labels: kind (timeout, backend_unavailable, malformed)
	ExecutionErrorsTotal *prometheus.CounterVec

	// ExecutionRetriesTotal counts single-shot retries after
	// backend_unavailable failures.
	ExecutionRetriesTotal prometheus.Counter

	// PersistenceConflictsTotal counts optimistic-concurrency conflicts
	// seen while saving sessions.
	PersistenceConflictsTotal prometheus.Counter

	// PersistenceFailuresTotal counts turns that degraded to
	// persisted=false after exhausting retries.
	PersistenceFailuresTotal prometheus.Counter

	// FeedbackTotal counts feedback submissions.
	// Labels: rating (like, dislike), duplicate (true, false)
	FeedbackTotal *prometheus.CounterVec

	// ActiveTurns tracks turns currently being processed.
	ActiveTurns prometheus.Gauge
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *AssistantMetrics

// InitMetrics creates and registers all assistant metrics. Call once at
// startup; a second call panics on duplicate registration.
func InitMetrics() *AssistantMetrics {
	DefaultMetrics = &AssistantMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assistantSubsystem,
				Name:      "turns_total",
				Help:      "Total processed turns by intent and outcome",
			},
			[]string{"intent", "outcome"},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: assistantSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "End-to-end turn processing latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"intent"},
		),

		ExecutionErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assistantSubsystem,
				Name:      "execution_errors_total",
				Help:      "Total execution failures by kind",
			},
			[]string{"kind"},
		),

		ExecutionRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assistantSubsystem,
				Name:      "execution_retries_total",
				Help:      "Total execution retries after backend unavailability",
			},
		),

		PersistenceConflictsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assistantSubsystem,
				Name:      "persistence_conflicts_total",
				Help:      "Total session version conflicts during save",
			},
		),

		PersistenceFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assistantSubsystem,
				Name:      "persistence_failures_total",
				Help:      "Total turns returned with persisted=false",
			},
		),

		FeedbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assistantSubsystem,
				Name:      "feedback_total",
				Help:      "Total feedback submissions by rating",
			},
			[]string{"rating", "duplicate"},
		),

		ActiveTurns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: assistantSubsystem,
				Name:      "active_turns",
				Help:      "Turns currently being processed",
			},
		),
	}
	return DefaultMetrics
}
