// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package metrics provides Prometheus instrumentation for the
// synchronization core: polling, push events, commands, uploads and the
// reconciliation cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polling metrics
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallwatch_poll_duration_seconds",
			Help:    "Duration of poll fetches against the wall server",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"}, // "clients", "groups", "statuses"
	)

	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallwatch_poll_errors_total",
			Help: "Total number of failed polls (swallowed, cache retained)",
		},
		[]string{"collection"},
	)

	PollSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallwatch_poll_skipped_total",
			Help: "Polls skipped by coalescing or minimum spacing",
		},
		[]string{"collection", "reason"}, // "in_flight", "spacing"
	)

	// Push-event channel metrics
	PushEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallwatch_push_events_total",
			Help: "Inbound push events by frame type",
		},
		[]string{"type"},
	)

	PushReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallwatch_push_reconnects_total",
			Help: "Push channel reconnect attempts",
		},
	)

	PushConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wallwatch_push_connection_state",
			Help: "Push channel state (0 disconnected, 1 connecting, 2 connected, 3 error)",
		},
	)

	// Command orchestrator metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallwatch_commands_total",
			Help: "Commands executed by action and outcome",
		},
		[]string{"action", "outcome"}, // outcome: "success", "fallback_success", "failure"
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallwatch_command_duration_seconds",
			Help:    "End-to-end command duration including fallback attempts",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"action"},
	)

	// Reconciliation cache metrics
	CachePatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallwatch_cache_status_patches_total",
			Help: "Status patches by disposition",
		},
		[]string{"disposition"}, // "accepted", "rejected_stale"
	)

	CacheReplacements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallwatch_cache_replacements_total",
			Help: "Full collection replacements applied to the cache",
		},
		[]string{"collection"},
	)

	// Upload pipeline metrics
	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallwatch_upload_bytes_total",
			Help: "Total bytes transferred by the upload pipeline",
		},
	)

	UploadFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallwatch_upload_files_total",
			Help: "Files processed by the upload pipeline by outcome",
		},
		[]string{"outcome"}, // "completed", "failed"
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wallwatch_upload_file_duration_seconds",
			Help:    "Per-file upload duration",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Circuit breaker metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wallwatch_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallwatch_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
