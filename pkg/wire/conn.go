// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package wire implements the line-oriented conversation primitives shared by
// the POP3 and SMTP clients: CRLF-terminated commands, single reply lines and
// dot-terminated multi-line blocks over one TCP connection.
package wire

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/mailerr"
)

// Conn is one established conversation with a server. A Conn is owned by the
// single operation that dialed it and is not safe for concurrent use.
type Conn interface {
	// WriteLine sends `line` followed by CRLF.
	WriteLine(line string) error
	// WriteRaw sends an already framed payload in a single write.
	WriteRaw(data string) error
	// ReadLine returns the next line without its line terminator. At end of
	// stream it returns the empty string and no error.
	ReadLine() (string, error)
	// ReadMultiline returns the lines up to, not including, a line consisting
	// of a single ".". Byte-stuffed lines are returned as sent.
	ReadMultiline() ([]string, error)
	// Close tears down the connection, ignoring any errors.
	Close()
}

type conn struct {
	nc   net.Conn
	tp   *textproto.Conn
	log  *zap.Logger
	stop func() bool
}

// NewConn wraps an established network connection. If `ctx` is cancelled
// before Close, any blocked read or write is interrupted.
func NewConn(ctx context.Context, nc net.Conn, log *zap.Logger) Conn {
	if log == nil {
		log = zap.NewNop()
	}
	c := &conn{
		nc:  nc,
		tp:  textproto.NewConn(nc),
		log: log,
	}
	c.stop = context.AfterFunc(ctx, func() {
		nc.SetDeadline(time.Unix(1, 0))
	})
	return c
}

func (c *conn) WriteLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return mailerr.Wrap(mailerr.ErrIO, "write", errors.New("command contains a line break"))
	}
	if err := c.tp.PrintfLine("%s", line); err != nil {
		return mailerr.Wrap(mailerr.ErrIO, "write", err)
	}
	return nil
}

func (c *conn) WriteRaw(data string) error {
	w := c.tp.Writer.W
	if _, err := w.WriteString(data); err != nil {
		return mailerr.Wrap(mailerr.ErrIO, "write", err)
	}
	if err := w.Flush(); err != nil {
		return mailerr.Wrap(mailerr.ErrIO, "write", err)
	}
	return nil
}

func (c *conn) ReadLine() (string, error) {
	line, err := c.tp.ReadLine()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", mailerr.Wrap(mailerr.ErrIO, "read", err)
	}
	return line, nil
}

func (c *conn) ReadMultiline() ([]string, error) {
	var lines []string
	for {
		line, err := c.tp.ReadLine()
		if err == io.EOF {
			return lines, mailerr.Wrap(mailerr.ErrIO, "read", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return lines, mailerr.Wrap(mailerr.ErrIO, "read", err)
		}
		if line == "." {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

func (c *conn) Close() {
	c.stop()
	if err := c.tp.Writer.W.Flush(); err != nil {
		c.log.Debug("Flush on close failed", zap.Error(err))
	}
	if cw, ok := c.nc.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			c.log.Debug("CloseWrite failed", zap.Error(err))
		}
	}
	if err := c.nc.Close(); err != nil {
		c.log.Debug("Close failed", zap.Error(err))
	}
}

// JoinLines renders a multi-line block as text, each line followed by "\n".
func JoinLines(lines []string) string {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}
