// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具
//
// Package metrics declares the prometheus collectors of the upmix service.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run metrics
var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upmix_runs_total",
			Help: "Total number of batch runs by outcome",
		},
		[]string{"outcome"}, // "completed", "cancelled", "failed", "startup"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upmix_run_duration_seconds",
			Help:    "Wall time of a batch run in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	RunIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upmix_run_running",
			Help: "Whether a batch run is in progress (1 = running, 0 = idle)",
		},
	)

	RunProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upmix_run_progress_ratio",
			Help: "Fraction of the current batch that has finished",
		},
	)
)

// Item metrics
var (
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upmix_items_total",
			Help: "Total number of batch items by final status",
		},
		[]string{"status", "format"},
	)

	ItemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upmix_item_duration_seconds",
			Help:    "ffmpeg wall time per upmixed file in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"format", "quality"},
	)

	BatchSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upmix_batch_items",
			Help: "Number of items in the batch",
		},
	)
)

// Watch folder metrics
var (
	WatchFilesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upmix_watch_files_added_total",
			Help: "Files added to the batch by the watch folder",
		},
	)

	WatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upmix_watch_errors_total",
			Help: "Errors reported by the watch folder",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upmix_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upmix_event_subscribers",
			Help: "Number of connected event stream clients",
		},
	)
)
