// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector with Prometheus metrics.
type PrometheusCollector struct {
	operationsActive  *prometheus.GaugeVec
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	commandsTotal     *prometheus.CounterVec
}

// NewPrometheusCollector creates a PrometheusCollector and registers its
// metrics with `reg`.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		operationsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailclient_operations_active",
			Help: "Number of client operations currently holding a connection.",
		}, []string{"proto", "op"}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailclient_operations_total",
			Help: "Total number of finished client operations by outcome.",
		}, []string{"proto", "op", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailclient_operation_duration_seconds",
			Help:    "Wall time of client operations, dial to close.",
			Buckets: prometheus.DefBuckets,
		}, []string{"proto", "op"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailclient_commands_total",
			Help: "Total number of protocol commands sent.",
		}, []string{"proto", "command"}),
	}

	reg.MustRegister(
		c.operationsActive,
		c.operationsTotal,
		c.operationDuration,
		c.commandsTotal,
	)
	return c
}

func (c *PrometheusCollector) OperationStarted(proto, op string) {
	c.operationsActive.WithLabelValues(proto, op).Inc()
}

func (c *PrometheusCollector) CommandSent(proto, command string) {
	c.commandsTotal.WithLabelValues(proto, command).Inc()
}

func (c *PrometheusCollector) OperationFinished(proto, op, outcome string, elapsed time.Duration) {
	c.operationsActive.WithLabelValues(proto, op).Dec()
	c.operationsTotal.WithLabelValues(proto, op, outcome).Inc()
	c.operationDuration.WithLabelValues(proto, op).Observe(elapsed.Seconds())
}
