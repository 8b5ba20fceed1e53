// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import "github.com/prometheus/client_golang/prometheus"

// tableMetrics are the Prometheus collectors a Table exposes for
// embedding applications that already run a registry, mirroring the
// teacher's own transitive dependency on client_golang for its metrics
// surface.
type tableMetrics struct {
	rowsCommitted prometheus.Counter
	rowBodyBytes  prometheus.Counter
}

func newTableMetrics(name string) *tableMetrics {
	return &tableMetrics{
		rowsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wormtable",
			Subsystem: "table",
			Name:      "rows_committed_total",
			Help:      "Number of rows committed to the table.",
			ConstLabels: prometheus.Labels{
				"table": name,
			},
		}),
		rowBodyBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wormtable",
			Subsystem: "table",
			Name:      "row_body_bytes_total",
			Help:      "Total bytes of row body data appended to the data file.",
			ConstLabels: prometheus.Labels{
				"table": name,
			},
		}),
	}
}

// Metrics returns this Table's Prometheus collectors, for the caller to
// register with its own registry.
func (t *Table) Metrics() []prometheus.Collector {
	return []prometheus.Collector{t.metrics.rowsCommitted, t.metrics.rowBodyBytes}
}

// indexMetrics are the Prometheus collectors an Index exposes during and
// after Build.
type indexMetrics struct {
	rowsIndexed  prometheus.Counter
	buildSeconds prometheus.Gauge
}

func newIndexMetrics(name string) *indexMetrics {
	return &indexMetrics{
		rowsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wormtable",
			Subsystem: "index",
			Name:      "rows_indexed_total",
			Help:      "Number of rows visited while building the index.",
			ConstLabels: prometheus.Labels{
				"index": name,
			},
		}),
		buildSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wormtable",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Duration of the most recent Build call.",
			ConstLabels: prometheus.Labels{
				"index": name,
			},
		}),
	}
}

// Metrics returns this Index's Prometheus collectors.
func (idx *Index) Metrics() []prometheus.Collector {
	return []prometheus.Collector{idx.metrics.rowsIndexed, idx.metrics.buildSeconds}
}
