/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package maintainer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "fleet_rollout"

// Outcomes of a scheduled tick
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomePanicked  = "panicked"
)

// Metrics is the sink of the maintenance job results
type Metrics struct {
	successRatio *prometheus.GaugeVec
	runs         *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMetrics creates the job metrics, registering them
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		successRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "job",
			Name:      "success_ratio",
			Help:      "Success ratio of the last completed pass of a maintenance job.",
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Number of scheduled ticks of a maintenance job, by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "job",
			Name:      "duration_seconds",
			Help:      "Duration of the passes of a maintenance job.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
	}
	registerer.MustRegister(metrics.successRatio, metrics.runs, metrics.duration)
	return metrics
}

func (m *Metrics) observe(job, outcome string, result RunResult, elapsed time.Duration) {
	m.runs.WithLabelValues(job, outcome).Inc()
	m.successRatio.WithLabelValues(job).Set(result.SuccessRatio())
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *Metrics) skipped(job string) {
	m.runs.WithLabelValues(job, OutcomeSkipped).Inc()
}
