// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package metrics records what the mail client engines do: operations
// started and finished, and protocol commands sent.
package metrics

import "time"

// Collector receives client activity. `proto` is "pop3" or "smtp"; `outcome`
// is "ok" or an error kind name from mailerr.KindName.
type Collector interface {
	OperationStarted(proto, op string)
	CommandSent(proto, command string)
	OperationFinished(proto, op, outcome string, elapsed time.Duration)
}

// NoopCollector discards everything.
type NoopCollector struct{}

func (NoopCollector) OperationStarted(proto, op string)                                  {}
func (NoopCollector) CommandSent(proto, command string)                                  {}
func (NoopCollector) OperationFinished(proto, op, outcome string, elapsed time.Duration) {}
