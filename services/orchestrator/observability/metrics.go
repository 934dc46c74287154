// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the service's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConversationTurns counts completed conversation turns by outcome.
	ConversationTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thery_conversation_turns_total",
		Help: "Total conversation turns by outcome",
	}, []string{"outcome"})

	// ConversationDuration tracks end-to-end turn latency.
	ConversationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "thery_conversation_duration_seconds",
		Help:    "End-to-end conversation turn duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
	})

	// SafetyAssessments counts turns by assigned safety level.
	SafetyAssessments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thery_safety_assessments_total",
		Help: "Total safety assessments by level",
	}, []string{"level"})

	// ContextSourceFailures counts degraded retrieval sources.
	ContextSourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thery_context_source_failures_total",
		Help: "Total degraded context retrievals by source",
	}, []string{"source"})

	// PersistenceErrors counts async persistence failures by sink.
	PersistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thery_persistence_errors_total",
		Help: "Total asynchronous persistence failures by sink",
	}, []string{"sink"})

	// SessionsCreated counts minted sessions by whether the user is new.
	SessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thery_sessions_created_total",
		Help: "Total sessions created, labeled by user novelty",
	}, []string{"new_user"})
)
