// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package metrics holds the process-wide Prometheus collectors for idfind's
// indexing and server subsystems, exposed over promhttp when a metrics
// address is configured.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsIdfind struct {
	once sync.Once

	indexFilesTotal    *prometheus.CounterVec
	indexDuration      prometheus.Histogram
	serverRequests     *prometheus.CounterVec
	serverWorkersGauge prometheus.Gauge
}

var m metricsIdfind

func (m *metricsIdfind) init() {
	m.once.Do(func() {
		m.indexFilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idfind_index_files_total",
			Help: "Files processed during an index build, partitioned by outcome.",
		}, []string{"reason"})

		m.indexDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "idfind_index_duration_seconds",
			Help:    "Wall-clock duration of an index build.",
			Buckets: prometheus.DefBuckets,
		})

		m.serverRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idfind_server_requests_total",
			Help: "Search requests served, partitioned by database and result.",
		}, []string{"dbname", "result"})

		m.serverWorkersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "idfind_server_workers_active",
			Help: "Number of per-database worker goroutines currently running.",
		})

		prometheus.MustRegister(
			m.indexFilesTotal,
			m.indexDuration,
			m.serverRequests,
			m.serverWorkersGauge,
		)
	})
}

// RecordIndexedFile increments the index-files counter for reason, one of
// "indexed", "skipped_hidden", "skipped_extension", "skipped_binary",
// "skipped_too_short", or "read_error".
func RecordIndexedFile(reason string) {
	m.init()
	m.indexFilesTotal.WithLabelValues(reason).Inc()
}

// RecordIndexedFiles increments the index-files counter for reason by n, for
// batched reporting after a build completes.
func RecordIndexedFiles(reason string, n int) {
	if n <= 0 {
		return
	}
	m.init()
	m.indexFilesTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordIndexDuration observes the total wall-clock time of one index build.
func RecordIndexDuration(seconds float64) {
	m.init()
	m.indexDuration.Observe(seconds)
}

// RecordServerRequest increments the per-database, per-result request
// counter. result is one of "ok", "short_needle", or "load_error".
func RecordServerRequest(dbname, result string) {
	m.init()
	m.serverRequests.WithLabelValues(dbname, result).Inc()
}

// SetActiveWorkers sets the current count of live per-database workers.
func SetActiveWorkers(n int) {
	m.init()
	m.serverWorkersGauge.Set(float64(n))
}
