// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package wiretest provides a scripted wire.Conn for testing protocol
// sequencing without a socket.
package wiretest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"src.bluestatic.org/mailclient/pkg/mailerr"
	"src.bluestatic.org/mailclient/pkg/wire"
)

// Conn replays canned server lines and records what the client sends.
type Conn struct {
	mu      sync.Mutex
	replies []string
	written []string
	closes  int

	// FailWrite, if set, makes any write starting with it fail with ErrIO.
	FailWrite string
}

// NewConn returns a Conn that serves `replies`, one line per read.
func NewConn(replies ...string) *Conn {
	return &Conn{replies: replies}
}

func (c *Conn) WriteLine(line string) error {
	return c.write(line)
}

func (c *Conn) WriteRaw(data string) error {
	return c.write(data)
}

func (c *Conn) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWrite != "" && strings.HasPrefix(s, c.FailWrite) {
		return mailerr.Wrap(mailerr.ErrIO, "write", errors.New("connection reset by peer"))
	}
	c.written = append(c.written, s)
	return nil
}

func (c *Conn) ReadLine() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return "", nil
	}
	line := c.replies[0]
	c.replies = c.replies[1:]
	return line, nil
}

func (c *Conn) ReadMultiline() ([]string, error) {
	var lines []string
	for {
		c.mu.Lock()
		if len(c.replies) == 0 {
			c.mu.Unlock()
			return lines, mailerr.Wrap(mailerr.ErrIO, "read", errors.New("unexpected EOF"))
		}
		line := c.replies[0]
		c.replies = c.replies[1:]
		c.mu.Unlock()
		if line == "." {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
}

// Written returns every line and raw payload sent so far, in order.
func (c *Conn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// Closes returns how many times Close was called.
func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Dialer hands out Conn, or fails with Err.
type Dialer struct {
	Conn *Conn
	Err  error

	mu    sync.Mutex
	dials int
}

func (d *Dialer) Dial(ctx context.Context, host string, port int) (wire.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Conn, nil
}

// Dials returns how many times Dial was called.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
