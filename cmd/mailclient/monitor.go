// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/message"
	"src.bluestatic.org/mailclient/pkg/pop3"
	"src.bluestatic.org/mailclient/pkg/smtp"
)

// Mailbox is the POP3 side of a Monitor. *pop3.Client implements it.
type Mailbox interface {
	Login(ctx context.Context, user, pass string) ([]pop3.Entry, error)
	Retrieve(ctx context.Context, user, pass string, id int) (string, error)
	Delete(ctx context.Context, user, pass string, id int) error
}

// Sender is the SMTP side of a Monitor. *smtp.Client implements it.
type Sender interface {
	Send(ctx context.Context, msg smtp.Message) error
}

type MonitorConfig struct {
	User, Password string
	From           string

	PollInterval time.Duration
	ForwardTo    string
	Delete       bool
}

// Monitor polls a mailbox, logs every message that arrives and optionally
// forwards it to another address.
type Monitor struct {
	c   MonitorConfig
	log *zap.Logger

	src Mailbox
	dst Sender

	// seen holds the message numbers already reported.
	seen map[int]bool
}

func NewMonitor(config MonitorConfig, src Mailbox, dst Sender, log *zap.Logger) *Monitor {
	log = log.With(zap.String("mailbox", config.User))
	if config.ForwardTo != "" {
		log = log.With(zap.String("forward_to", config.ForwardTo))
	}
	return &Monitor{
		c:   config,
		log: log,
		src:  src,
		dst:  dst,
		seen: make(map[int]bool),
	}
}

// Start polls once and returns that poll's error. Polling then continues in
// the background until `ctx` is done.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.runOnce(ctx); err != nil {
		m.log.Error("Failed to start monitor", zap.Error(err))
		return err
	}

	go m.run(ctx)

	return nil
}

func (m *Monitor) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("Monitor stopping")
			return
		case <-time.After(m.c.PollInterval):
			if err := m.runOnce(ctx); err != nil {
				m.log.Error("Poll failed", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) error {
	m.log.Info("Polling for messages")

	entries, err := m.src.Login(ctx, m.c.User, m.c.Password)
	if err != nil {
		return fmt.Errorf("Failed to list messages: %w", err)
	}

	for id := range m.seen {
		if id > len(entries) {
			m.log.Info("Mailbox shrank, rescanning", zap.Int("seen", len(m.seen)), zap.Int("messages", len(entries)))
			clear(m.seen)
			break
		}
	}

	var transferred []int
	for _, e := range entries {
		if m.seen[e.ID] {
			continue
		}
		log := m.log.With(zap.Int("id", e.ID), zap.Int("size", e.Size))
		err := m.transferMessage(ctx, e.ID, log)
		if err != nil {
			log.Error("Failed to transfer message", zap.Error(err))
			continue
		}
		transferred = append(transferred, e.ID)
		if !m.c.Delete {
			m.seen[e.ID] = true
		}
	}

	// Each DELE runs in its own session, so later messages are removed first
	// to keep the earlier numbers valid.
	for i := len(transferred) - 1; m.c.Delete && i >= 0; i-- {
		id := transferred[i]
		if err := m.src.Delete(ctx, m.c.User, m.c.Password, id); err != nil {
			m.log.Error("Failed to delete source message", zap.Int("id", id), zap.Error(err))
		}
	}

	return nil
}

func (m *Monitor) transferMessage(ctx context.Context, id int, log *zap.Logger) error {
	raw, err := m.src.Retrieve(ctx, m.c.User, m.c.Password, id)
	if err != nil {
		return fmt.Errorf("Failed to get message content: %w", err)
	}

	msg, err := message.Parse(raw)
	if err != nil {
		return fmt.Errorf("Failed to parse message: %w", err)
	}
	log.Info("New message",
		zap.Strings("from", msg.From),
		zap.String("subject", msg.Subject),
		zap.String("thread", message.OriginalSubject(msg.Subject)),
		zap.Time("date", msg.Date))

	if m.dst == nil || m.c.ForwardTo == "" {
		return nil
	}

	fwd := smtp.Message{
		From:    m.c.From,
		To:      m.c.ForwardTo,
		Subject: msg.Subject,
		Body:    string(getReceivedInfo(m.c, msg, time.Now())) + msg.Body,
	}
	if err := m.dst.Send(ctx, fwd); err != nil {
		return fmt.Errorf("Failed to forward message: %w", err)
	}
	log.Info("Forwarded message")
	return nil
}

func getReceivedInfo(cfg MonitorConfig, msg *message.Parsed, t time.Time) []byte {
	from := "unknown"
	if len(msg.From) > 0 {
		from = msg.From[0]
	}
	line := fmt.Sprintf(
		"Forwarded from <%s> (via pop3) by mailclient\r\n        for <%s> (via smtp); %s\r\n\r\n",
		from, cfg.ForwardTo, t.Format(time.RFC1123Z))
	return []byte(line)
}
