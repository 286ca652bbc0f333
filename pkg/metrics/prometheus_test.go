// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.OperationStarted("pop3", "list")
	if want, got := 1.0, testutil.ToFloat64(c.operationsActive.WithLabelValues("pop3", "list")); want != got {
		t.Errorf("Expected %v active, got %v", want, got)
	}

	c.CommandSent("pop3", "USER")
	c.CommandSent("pop3", "PASS")
	c.CommandSent("pop3", "USER")
	if want, got := 2.0, testutil.ToFloat64(c.commandsTotal.WithLabelValues("pop3", "USER")); want != got {
		t.Errorf("Expected %v USER commands, got %v", want, got)
	}

	c.OperationFinished("pop3", "list", "auth", 20*time.Millisecond)
	if want, got := 0.0, testutil.ToFloat64(c.operationsActive.WithLabelValues("pop3", "list")); want != got {
		t.Errorf("Expected %v active, got %v", want, got)
	}
	if want, got := 1.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("pop3", "list", "auth")); want != got {
		t.Errorf("Expected %v finished, got %v", want, got)
	}
	if want, got := 1, testutil.CollectAndCount(c.operationDuration); want != got {
		t.Errorf("Expected %d duration series, got %d", want, got)
	}
}

func TestNoopCollector(t *testing.T) {
	var c Collector = NoopCollector{}
	c.OperationStarted("smtp", "send")
	c.CommandSent("smtp", "HELO")
	c.OperationFinished("smtp", "send", "ok", time.Second)
}
