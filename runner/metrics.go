// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts worker trials. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry
	Trials   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics returns Metrics registered in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caliper_trials_total",
			Help: "Worker trials by instrument and outcome.",
		}, []string{"instrument", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caliper_worker_duration_seconds",
			Help:    "Wall-clock duration of worker processes.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"instrument"}),
	}
	m.Registry.MustRegister(m.Trials, m.Duration)
	return m
}

func (m *Metrics) observe(instrument, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Trials.WithLabelValues(instrument, outcome).Inc()
	m.Duration.WithLabelValues(instrument).Observe(d.Seconds())
}

// WriteFile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
