// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package pop3 implements the client side of RFC 1939. Every operation opens
// its own connection, authenticates with USER/PASS, performs one request and
// closes the connection before returning.
package pop3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/mailerr"
	"src.bluestatic.org/mailclient/pkg/metrics"
	"src.bluestatic.org/mailclient/pkg/wire"
)

const proto = "pop3"

// Client holds the address of a POP3 server. It keeps no connection state, so
// one Client may serve concurrent callers.
type Client struct {
	Host string
	Port int

	Dialer  wire.Dialer
	Log     *zap.Logger
	Metrics metrics.Collector
}

// NewClient returns a Client for host:port that dials plain TCP.
func NewClient(host string, port int, log *zap.Logger) *Client {
	return &Client{
		Host:    host,
		Port:    port,
		Dialer:  wire.NetDialer{Log: log},
		Log:     log,
		Metrics: metrics.NoopCollector{},
	}
}

// Login authenticates and returns the scan listing of the mailbox, in the
// order the server sent it. Listing lines that do not parse are skipped.
func (c *Client) Login(ctx context.Context, user, pass string) ([]Entry, error) {
	var entries []Entry
	err := c.do(ctx, "list", func(s *session) error {
		if err := s.authenticate(user, pass); err != nil {
			return err
		}
		if _, err := s.transaction("LIST", "LIST", mailerr.ErrProtocol, "listing failed"); err != nil {
			return err
		}
		lines, err := s.conn.ReadMultiline()
		if err != nil {
			return err
		}
		entries = parseListing(lines, s.log)
		s.log.Info("Listed mailbox", zap.Int("messages", len(entries)))
		return nil
	})
	return entries, err
}

// Retrieve authenticates and returns message `id` with each line followed by
// "\n".
func (c *Client) Retrieve(ctx context.Context, user, pass string, id int) (string, error) {
	if id < 1 {
		return "", mailerr.New(mailerr.ErrNotFound, "RETR", fmt.Sprintf("invalid message number %d", id), "")
	}
	var msg string
	err := c.do(ctx, "retrieve", func(s *session) error {
		if err := s.authenticate(user, pass); err != nil {
			return err
		}
		defer s.quit()

		cmd := fmt.Sprintf("RETR %d", id)
		if reply, err := s.send("RETR", cmd); err != nil {
			return err
		} else if !IsOK(reply) {
			return mailerr.New(missingKind(reply), cmd, "retrieve failed", reply)
		}
		lines, err := s.conn.ReadMultiline()
		if err != nil {
			return err
		}
		msg = wire.JoinLines(lines)
		s.log.Info("Retrieved message", zap.Int("msg", id), zap.Int("lines", len(lines)))
		return nil
	})
	return msg, err
}

// Delete authenticates, marks message `id` deleted and ends the session with
// QUIT, which is what commits the deletion on the server. QUIT is sent even
// when DELE is refused, and its own reply never fails the operation.
func (c *Client) Delete(ctx context.Context, user, pass string, id int) error {
	if id < 1 {
		return mailerr.New(mailerr.ErrNotFound, "DELE", fmt.Sprintf("invalid message number %d", id), "")
	}
	return c.do(ctx, "delete", func(s *session) error {
		if err := s.authenticate(user, pass); err != nil {
			return err
		}
		defer s.quit()

		cmd := fmt.Sprintf("DELE %d", id)
		if reply, err := s.send("DELE", cmd); err != nil {
			return err
		} else if !IsOK(reply) {
			return mailerr.New(missingKind(reply), cmd, "delete failed", reply)
		}
		s.log.Info("Marked message deleted", zap.Int("msg", id))
		return nil
	})
}

func (c *Client) do(ctx context.Context, op string, fn func(*session) error) (err error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("op", op), zap.String("id", ulid.Make().String()))

	m := c.Metrics
	if m == nil {
		m = metrics.NoopCollector{}
	}
	start := time.Now()
	m.OperationStarted(proto, op)
	defer func() {
		m.OperationFinished(proto, op, mailerr.KindName(err), time.Since(start))
	}()

	dialer := c.Dialer
	if dialer == nil {
		dialer = wire.NetDialer{Log: log}
	}
	conn, err := dialer.Dial(ctx, c.Host, c.Port)
	if err != nil {
		if !errors.Is(err, mailerr.ErrConnection) {
			err = mailerr.Wrap(mailerr.ErrConnection, "dial", err)
		}
		log.Error("Failed to connect", zap.Error(err))
		return err
	}
	defer conn.Close()

	if err = fn(&session{conn: conn, log: log, m: m}); err != nil {
		log.Error("Operation failed", zap.Error(err))
		return err
	}
	return nil
}

type session struct {
	conn wire.Conn
	log  *zap.Logger
	m    metrics.Collector
}

// send writes `line` and returns the reply. `verb` is what gets logged, so
// arguments such as the password never reach the log.
func (s *session) send(verb, line string) (string, error) {
	log := s.log.With(zap.String("command", verb))
	log.Debug("Sending command")
	s.m.CommandSent(proto, verb)
	if err := s.conn.WriteLine(line); err != nil {
		log.Error("Failed to send command", zap.Error(err))
		return "", err
	}
	reply, err := s.conn.ReadLine()
	if err != nil {
		log.Error("Failed to read reply", zap.Error(err))
		return "", err
	}
	log.Debug("Received reply", zap.String("reply", reply))
	return reply, nil
}

// transaction sends a command that must be answered with +OK, failing with
// `kind` otherwise.
func (s *session) transaction(verb, line string, kind error, msg string) (string, error) {
	reply, err := s.send(verb, line)
	if err != nil {
		return reply, err
	}
	if !IsOK(reply) {
		return reply, mailerr.New(kind, verb, msg, reply)
	}
	return reply, nil
}

func (s *session) authenticate(user, pass string) error {
	greeting, err := s.conn.ReadLine()
	if err != nil {
		return err
	}
	if greeting == "" {
		return mailerr.New(mailerr.ErrConnection, "greeting", "no greeting from server", "")
	}
	if !IsOK(greeting) {
		return mailerr.New(mailerr.ErrAuth, "greeting", "connection rejected", greeting)
	}
	s.log.Debug("Server greeting", zap.String("reply", greeting))

	if _, err := s.transaction("USER", "USER "+user, mailerr.ErrAuth, "bad username"); err != nil {
		return err
	}
	if _, err := s.transaction("PASS", "PASS "+pass, mailerr.ErrAuth, "bad password"); err != nil {
		return err
	}
	s.log.Info("Authenticated", zap.String("user", user))
	return nil
}

// quit ends the session. Its outcome is only logged.
func (s *session) quit() {
	reply, err := s.send("QUIT", "QUIT")
	if err != nil {
		s.log.Warn("QUIT failed", zap.Error(err))
		return
	}
	if !IsOK(reply) {
		s.log.Warn("Unexpected QUIT reply", zap.String("reply", reply))
	}
}
