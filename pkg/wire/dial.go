// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package wire

import (
	"context"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/mailerr"
)

// Dialer opens a Conn to host:port.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Conn, error)
}

// NetDialer dials plain TCP connections.
type NetDialer struct {
	// Timeout bounds both connection establishment and the whole conversation
	// that follows. Zero means no limit beyond the context's deadline.
	Timeout time.Duration
	Log     *zap.Logger
}

func (d NetDialer) Dial(ctx context.Context, host string, port int) (Conn, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	log = log.With(zap.String("address", addr))

	nd := net.Dialer{Timeout: d.Timeout}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Error("Failed to dial", zap.Error(err))
		return nil, mailerr.Wrap(mailerr.ErrConnection, "dial "+addr, err)
	}

	var deadline time.Time
	if d.Timeout > 0 {
		deadline = time.Now().Add(d.Timeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	if !deadline.IsZero() {
		nc.SetDeadline(deadline)
	}

	log.Debug("Connected")
	return NewConn(ctx, nc, log), nil
}
