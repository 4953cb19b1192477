// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// Metrics counts registration decisions and state resets.
type Metrics struct {
	Decisions     *prometheus.CounterVec
	Resets        *prometheus.CounterVec
	ResetDuration prometheus.Histogram
}

// NewMetrics creates the harness metrics and registers them with reg. If reg
// already holds collectors of the same name, for example from an earlier
// harness in the same process, those are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envsuite_spec_decisions_total",
				Help: "Total number of environment-gated spec registrations by decision",
			},
			[]string{"decision"},
		),
		Resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envsuite_state_resets_total",
				Help: "Total number of state resets by result",
			},
			[]string{"result"},
		),
		ResetDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "envsuite_state_reset_duration_seconds",
			Help:    "Histogram of state reset latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	var err error
	if m.Decisions, err = register(reg, m.Decisions); err != nil {
		return nil, err
	}
	if m.Resets, err = register(reg, m.Resets); err != nil {
		return nil, err
	}
	if m.ResetDuration, err = register(reg, m.ResetDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c with reg, returning the collector already registered
// under the same descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, oops.Code("METRICS_REGISTER_FAILED").Wrap(err)
}

func (m *Metrics) observeDecision(d Decision) {
	m.Decisions.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) observeReset(d time.Duration, err error) {
	m.ResetDuration.Observe(d.Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Resets.WithLabelValues(result).Inc()
}

// WriteMetrics writes the harness metrics to path in the Prometheus text
// format, for collection by a node_exporter textfile collector.
func (h *Harness) WriteMetrics(path string) error {
	if h.gatherer == nil {
		return oops.Code("METRICS_UNAVAILABLE").
			With("path", path).
			Errorf("registerer does not implement prometheus.Gatherer")
	}
	if err := prometheus.WriteToTextfile(path, h.gatherer); err != nil {
		return oops.Code("METRICS_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
