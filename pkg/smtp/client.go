// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package smtp implements the client side of an RFC 5321 mail transaction:
// HELO, one sender, one recipient and a single DATA payload per connection.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/mailerr"
	"src.bluestatic.org/mailclient/pkg/metrics"
	"src.bluestatic.org/mailclient/pkg/wire"
)

const proto = "smtp"

// DefaultLocalName is the HELO identifier used when Client.LocalName is
// empty.
const DefaultLocalName = "client"

// Message is an outbound plain-text message.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Client delivers messages to one mail exchange. If Host is empty, the
// exchange is found through the MX records of the recipient's domain.
type Client struct {
	Host      string
	Port      int
	LocalName string

	Dialer   wire.Dialer
	Resolver MXResolver
	Log      *zap.Logger
	Metrics  metrics.Collector
}

// NewClient returns a Client for host:port that dials plain TCP.
func NewClient(host string, port int, log *zap.Logger) *Client {
	return &Client{
		Host:      host,
		Port:      port,
		LocalName: DefaultLocalName,
		Dialer:    wire.NetDialer{Log: log},
		Log:       log,
		Metrics:   metrics.NoopCollector{},
	}
}

// Send validates the addresses, then runs one complete mail transaction for
// `msg`. An invalid sender or recipient fails before any connection is made.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !ValidAddress(msg.From) {
		return mailerr.New(mailerr.ErrValidation, "MAIL FROM", fmt.Sprintf("invalid sender address %q", msg.From), "")
	}
	if !ValidAddress(msg.To) {
		return mailerr.New(mailerr.ErrValidation, "RCPT TO", fmt.Sprintf("invalid recipient address %q", msg.To), "")
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return mailerr.New(mailerr.ErrValidation, "DATA", "subject contains a line break", "")
	}
	return c.do(ctx, msg, func(s *session) error {
		return s.transact(c.localName(), msg)
	})
}

func (c *Client) localName() string {
	if c.LocalName == "" {
		return DefaultLocalName
	}
	return c.LocalName
}

func (c *Client) do(ctx context.Context, msg Message, fn func(*session) error) (err error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("id", ulid.Make().String()), zap.String("to", msg.To))

	m := c.Metrics
	if m == nil {
		m = metrics.NoopCollector{}
	}
	start := time.Now()
	m.OperationStarted(proto, "send")
	defer func() {
		m.OperationFinished(proto, "send", mailerr.KindName(err), time.Since(start))
	}()

	host := c.Host
	if host == "" {
		if host, err = c.lookupExchange(ctx, msg.To, log); err != nil {
			log.Error("Failed to find mail exchange", zap.Error(err))
			return err
		}
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = wire.NetDialer{Log: log}
	}
	conn, err := dialer.Dial(ctx, host, c.Port)
	if err != nil {
		if !errors.Is(err, mailerr.ErrConnection) {
			err = mailerr.Wrap(mailerr.ErrConnection, "dial", err)
		}
		log.Error("Failed to connect", zap.Error(err))
		return err
	}
	defer conn.Close()

	if err = fn(&session{conn: conn, log: log.With(zap.String("host", host)), m: m}); err != nil {
		log.Error("Failed to send message", zap.Error(err))
		return err
	}
	log.Info("Message accepted for delivery")
	return nil
}

func (c *Client) lookupExchange(ctx context.Context, to string, log *zap.Logger) (string, error) {
	domain := DomainForAddress(to)
	r := c.Resolver
	if r == nil {
		r = NewDNSResolver(nil, 0)
	}
	mxs, err := r.LookupMX(ctx, domain)
	if err != nil {
		return "", mailerr.Wrap(mailerr.ErrConnection, "MX "+domain, err)
	}
	if len(mxs) == 0 {
		return "", mailerr.New(mailerr.ErrConnection, "MX "+domain, "no mail exchange", "")
	}
	log.Debug("Resolved mail exchange", zap.String("domain", domain), zap.String("mx", mxs[0].Host))
	return mxs[0].Host, nil
}

type session struct {
	conn wire.Conn
	log  *zap.Logger
	m    metrics.Collector
}

func (s *session) transact(localName string, msg Message) error {
	banner, err := s.readReply()
	if err != nil {
		return err
	}
	if ReplyCode(banner) != 220 {
		return mailerr.New(mailerr.ErrConnection, "banner", "server not ready", banner)
	}

	if err := s.expect("HELO", "HELO "+localName, 250, mailerr.ErrHandshake); err != nil {
		return err
	}
	if err := s.expect("MAIL FROM", "MAIL FROM:<"+msg.From+">", 250, mailerr.ErrSenderRejected); err != nil {
		return err
	}

	reply, err := s.send("RCPT TO", "RCPT TO:<"+msg.To+">")
	if err != nil {
		return err
	}
	if ReplyCode(reply) != 250 {
		return mailerr.New(ClassifyRecipientReply(reply), "RCPT TO", "", reply)
	}

	if err := s.expect("DATA", "DATA", 354, mailerr.ErrDataPhase); err != nil {
		return err
	}

	s.log.Debug("Sending message content")
	if err := s.conn.WriteRaw(FrameMessage(msg)); err != nil {
		return err
	}
	reply, err = s.readReply()
	if err != nil {
		return err
	}
	if ReplyCode(reply) != 250 {
		return mailerr.New(mailerr.ErrDelivery, "DATA", "message not accepted", reply)
	}
	s.log.Info("Message accepted", zap.String("reply", reply))

	s.quit()
	return nil
}

func (s *session) send(verb, line string) (string, error) {
	log := s.log.With(zap.String("command", verb))
	log.Debug("Sending command")
	s.m.CommandSent(proto, verb)
	if err := s.conn.WriteLine(line); err != nil {
		log.Error("Failed to send command", zap.Error(err))
		return "", err
	}
	reply, err := s.readReply()
	if err != nil {
		log.Error("Failed to read reply", zap.Error(err))
		return "", err
	}
	log.Debug("Received reply", zap.String("reply", reply))
	return reply, nil
}

// expect sends a command that must be answered with `code`, failing with
// `kind` otherwise.
func (s *session) expect(verb, line string, code int, kind error) error {
	reply, err := s.send(verb, line)
	if err != nil {
		return err
	}
	if ReplyCode(reply) != code {
		return mailerr.New(kind, verb, "", reply)
	}
	return nil
}

// readReply reads one reply, joining the lines of a multi-line reply
// ("250-...") with "\n".
func (s *session) readReply() (string, error) {
	var lines []string
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
		if len(line) < 4 || line[3] != '-' {
			return strings.Join(lines, "\n"), nil
		}
	}
}

// quit ends the session. Its outcome is only logged.
func (s *session) quit() {
	reply, err := s.send("QUIT", "QUIT")
	if err != nil {
		s.log.Warn("QUIT failed", zap.Error(err))
		return
	}
	if ReplyCode(reply) != 221 {
		s.log.Debug("Unexpected QUIT reply", zap.String("reply", reply))
	}
}
